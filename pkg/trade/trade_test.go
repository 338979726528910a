// Copyright 2025 Tradeledger Authors
package trade

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tradeledger/core/pkg/contract"
	"github.com/tradeledger/core/pkg/contracts/cash"
	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/messaging"
	"github.com/tradeledger/core/pkg/model"
	"github.com/tradeledger/core/pkg/tsa"
	"github.com/tradeledger/core/pkg/txstore"
	"github.com/tradeledger/core/pkg/validator"
)

// issue records an Issue transaction for amount of currency, owned by
// owner, directly into store (bypassing the group validator, since the
// trade protocol only re-verifies the proposed swap transaction itself).
func issue(t *testing.T, store txstore.Store, priv crypto.PrivateKey, owner crypto.PublicKey, amount int64, currency string) model.StateRef {
	t.Helper()
	state, cmd := cash.GenerateIssue(owner, amount, currency)
	wire := model.WireTransaction{Outputs: []model.State{state}, Commands: []model.Command{cmd}}
	signed := model.SignedTransaction{Wire: wire, Signatures: []crypto.Signature{crypto.Sign(priv, wire.Encode())}}
	require.NoError(t, store.PutBatch(context.Background(), []model.SignedTransaction{signed}))
	return model.StateRef{TxID: signed.ID(), Index: 0}
}

func TestTwoPartyTradeSettlesDeliveryVersusPayment(t *testing.T) {
	store := txstore.NewMemoryStore()
	bus := messaging.NewBus()
	registry := contract.NewRegistry()
	registry.Register(cash.New())
	group := validator.NewGroup(registry)

	sellerAssetPriv, sellerAssetPub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	buyerCashPriv, buyerCashPub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	_, sellerPayToPub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	_, buyerFreshAssetPub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	_, buyerFreshChangePub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	tsaPriv, tsaPub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	tsaIdentity := crypto.Party{Name: "tsa-1", Key: tsaPub}
	authority := tsa.New(tsaIdentity, tsaPriv, fixedNow{t: time.Now().UTC()})

	assetRef := issue(t, store, sellerAssetPriv, sellerAssetPub, 100, "ACME-BOND")
	cashRef := issue(t, store, buyerCashPriv, buyerCashPub, 1000, "USD")

	sellerMessenger := bus.Register("seller")
	buyerMessenger := bus.Register("buyer")

	seller := NewSeller(SellerConfig{
		Messenger:          sellerMessenger,
		Store:              store,
		Group:              group,
		TimestampAuthority: authority,
		AssetRef:           assetRef,
		AssetOwnerKey:      sellerAssetPub,
		AssetOwnerPriv:     sellerAssetPriv,
		Price:              600,
		Currency:           "USD",
		PayToKey:           sellerPayToPub,
		BuyerName:          "buyer",
		SessionID:          42,
	})

	buyer := NewBuyer(BuyerConfig{
		Messenger:             buyerMessenger,
		Store:                 store,
		ExpectedAssetContract: cash.New().Hash(),
		MaxPrice:              1000,
		Currency:              "USD",
		CashInputs:            []model.StateRef{cashRef},
		CashOwnerKey:          buyerCashPub,
		CashOwner:             buyerCashPriv,
		FreshAssetOwnerKey:    buyerFreshAssetPub,
		FreshChangeKey:        buyerFreshChangePub,
		TimestampWindow:       time.Hour,
		TimestampAuthority:    tsaIdentity,
		SellerName:            "seller",
		SessionID:             42,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type result struct {
		tx  model.SignedTransaction
		err error
	}
	sellerDone := make(chan result, 1)
	buyerDone := make(chan result, 1)

	go func() {
		tx, err := seller.Run(ctx)
		sellerDone <- result{tx, err}
	}()
	go func() {
		tx, err := buyer.Run(ctx)
		buyerDone <- result{tx, err}
	}()

	sellerResult := <-sellerDone
	buyerResult := <-buyerDone

	require.NoError(t, sellerResult.err)
	require.NoError(t, buyerResult.err)
	require.Equal(t, sellerResult.tx.ID(), buyerResult.tx.ID())
	require.NoError(t, sellerResult.tx.VerifySignatures(false))

	var sawAssetOutput, sawPaymentOutput, sawChangeOutput bool
	for _, out := range sellerResult.tx.Wire.Outputs {
		cs, ok := out.Payload.(cash.State)
		require.True(t, ok)
		switch {
		case cs.Currency == "ACME-BOND":
			sawAssetOutput = true
			require.True(t, out.Owner.Equal(buyerFreshAssetPub))
		case out.Owner.Equal(sellerPayToPub):
			sawPaymentOutput = true
			require.Equal(t, int64(600), cs.Amount)
		case out.Owner.Equal(buyerFreshChangePub):
			sawChangeOutput = true
			require.Equal(t, int64(400), cs.Amount)
		}
	}
	require.True(t, sawAssetOutput)
	require.True(t, sawPaymentOutput)
	require.True(t, sawChangeOutput)
}

type fixedNow struct{ t time.Time }

func (f fixedNow) Now() time.Time { return f.t }
