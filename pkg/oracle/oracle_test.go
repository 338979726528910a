// Copyright 2025 Tradeledger Authors
package oracle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tradeledger/core/pkg/crypto"
	"github.com/tradeledger/core/pkg/model"
)

func TestQueryUsesFloorLookup(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	o := New(crypto.Party{Name: "rate-fix-1", Key: pub}, priv)

	o.Seed("LIBOR", "1M", time.Date(2016, 3, 14, 0, 0, 0, 0, time.UTC), Rate(67800))
	o.Seed("LIBOR", "1M", time.Date(2016, 3, 16, 0, 0, 0, 0, time.UTC), Rate(67850))

	result := o.Query([]FixKey{{Index: "LIBOR", Tenor: "1M"}}, time.Date(2016, 3, 15, 0, 0, 0, 0, time.UTC))
	require.Equal(t, Rate(67800), result[FixKey{Index: "LIBOR", Tenor: "1M"}])

	result = o.Query([]FixKey{{Index: "LIBOR", Tenor: "1M"}}, time.Date(2016, 3, 20, 0, 0, 0, 0, time.UTC))
	require.Equal(t, Rate(67850), result[FixKey{Index: "LIBOR", Tenor: "1M"}])
}

func TestQueryOmitsKeysWithNoFixBeforeDate(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	o := New(crypto.Party{Name: "rate-fix-1", Key: pub}, priv)
	o.Seed("LIBOR", "1M", time.Date(2016, 3, 16, 0, 0, 0, 0, time.UTC), Rate(67800))

	result := o.Query([]FixKey{{Index: "LIBOR", Tenor: "1M"}}, time.Date(2016, 1, 1, 0, 0, 0, 0, time.UTC))
	_, ok := result[FixKey{Index: "LIBOR", Tenor: "1M"}]
	require.False(t, ok)
}

func TestSignAcceptsMatchingFix(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	identity := crypto.Party{Name: "rate-fix-1", Key: pub}
	o := New(identity, priv)
	date := time.Date(2016, 3, 16, 0, 0, 0, 0, time.UTC)
	o.Seed("LIBOR", "1M", date, Rate(67800))

	wire := model.WireTransaction{
		Commands: []model.Command{
			{
				Data:    FixCommand{Index: "LIBOR", Tenor: "1M", Date: date, Rate: 67800},
				Signers: []crypto.PublicKey{pub},
			},
		},
	}
	sig, err := o.Sign(wire.Encode())
	require.NoError(t, err)
	require.True(t, sig.Verify(wire.Encode()))
}

func TestSignRejectsMismatchedFix(t *testing.T) {
	priv, pub, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	identity := crypto.Party{Name: "rate-fix-1", Key: pub}
	o := New(identity, priv)
	date := time.Date(2016, 3, 16, 0, 0, 0, 0, time.UTC)
	o.Seed("LIBOR", "1M", date, Rate(67800))

	wire := model.WireTransaction{
		Commands: []model.Command{
			{
				Data:    FixCommand{Index: "LIBOR", Tenor: "1M", Date: date, Rate: 99999},
				Signers: []crypto.PublicKey{pub},
			},
		},
	}
	_, err = o.Sign(wire.Encode())
	require.ErrorIs(t, err, ErrUnknownFix)
}
