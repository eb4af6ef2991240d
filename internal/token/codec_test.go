package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestSignAndVerify(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	expires := now.Add(time.Hour)

	t.Run("round trips session id and expiry", func(t *testing.T) {
		signed, err := Sign(NewPayload(42, expires), testSecret, "HS256")
		require.NoError(t, err)

		payload, err := Verify(signed, testSecret, "HS256", now)
		require.NoError(t, err)
		require.NotNil(t, payload)
		require.NotNil(t, payload.SessionID)
		require.Equal(t, int64(42), *payload.SessionID)
		require.True(t, expires.Equal(payload.Expires))
	})

	t.Run("expired payload is nil even with a valid signature", func(t *testing.T) {
		signed, err := Sign(NewPayload(42, now.Add(-time.Second)), testSecret, "HS256")
		require.NoError(t, err)

		payload, err := Verify(signed, testSecret, "HS256", now)
		require.NoError(t, err)
		require.Nil(t, payload)
	})

	t.Run("expiry equal to now is rejected", func(t *testing.T) {
		signed, err := Sign(NewPayload(42, now), testSecret, "HS256")
		require.NoError(t, err)

		payload, err := Verify(signed, testSecret, "HS256", now)
		require.NoError(t, err)
		require.Nil(t, payload)
	})

	t.Run("bad signature is nil", func(t *testing.T) {
		signed, err := Sign(NewPayload(42, expires), "other-secret", "HS256")
		require.NoError(t, err)

		payload, err := Verify(signed, testSecret, "HS256", now)
		require.NoError(t, err)
		require.Nil(t, payload)
	})

	t.Run("wrong algorithm is nil", func(t *testing.T) {
		signed, err := Sign(NewPayload(42, expires), testSecret, "HS512")
		require.NoError(t, err)

		payload, err := Verify(signed, testSecret, "HS256", now)
		require.NoError(t, err)
		require.Nil(t, payload)
	})

	t.Run("malformed token is nil", func(t *testing.T) {
		payload, err := Verify("not.a.token", testSecret, "HS256", now)
		require.NoError(t, err)
		require.Nil(t, payload)
	})

	t.Run("missing session id is kept as absent", func(t *testing.T) {
		signed, err := Sign(Payload{Expires: expires}, testSecret, "HS256")
		require.NoError(t, err)

		payload, err := Verify(signed, testSecret, "HS256", now)
		require.NoError(t, err)
		require.NotNil(t, payload)
		require.Nil(t, payload.SessionID)
	})
}

func TestVerifyExpiresClaim(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	sign := func(t *testing.T, claims jwt.MapClaims) string {
		t.Helper()
		signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
		require.NoError(t, err)
		return signed
	}

	cases := []struct {
		name   string
		claims jwt.MapClaims
		valid  bool
	}{
		{name: "missing expires", claims: jwt.MapClaims{"session_id": 1}, valid: false},
		{name: "unparsable expires", claims: jwt.MapClaims{"session_id": 1, "expires": "tomorrow"}, valid: false},
		{name: "numeric expires", claims: jwt.MapClaims{"session_id": 1, "expires": 1893456000}, valid: false},
		{name: "naive iso timestamp", claims: jwt.MapClaims{"session_id": 1, "expires": "2026-01-02T04:00:00.123456"}, valid: true},
		{name: "naive iso timestamp in the past", claims: jwt.MapClaims{"session_id": 1, "expires": "2026-01-02T03:00:00"}, valid: false},
		{name: "offset timestamp", claims: jwt.MapClaims{"session_id": 1, "expires": "2026-01-02T05:00:00+01:00"}, valid: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload, err := Verify(sign(t, tc.claims), testSecret, "HS256", now)
			require.NoError(t, err)
			if tc.valid {
				require.NotNil(t, payload)
			} else {
				require.Nil(t, payload)
			}
		})
	}
}

func TestCodecConfiguration(t *testing.T) {
	t.Parallel()

	expires := time.Now().Add(time.Hour)

	_, err := Sign(NewPayload(1, expires), "", "HS256")
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = Sign(NewPayload(1, expires), testSecret, "")
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = Sign(NewPayload(1, expires), testSecret, "RS256")
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = Verify("anything", "", "HS256", time.Now())
	require.ErrorIs(t, err, ErrConfiguration)

	_, err = NewCodec(testSecret, "").Decode("anything")
	require.ErrorIs(t, err, ErrConfiguration)
}

func TestCodecUsesClock(t *testing.T) {
	t.Parallel()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	codec := NewCodec(testSecret, "hs256").WithClock(func() time.Time { return base })

	signed, err := codec.Sign(NewPayload(9, base.Add(time.Minute)))
	require.NoError(t, err)

	payload, err := codec.Decode(signed)
	require.NoError(t, err)
	require.NotNil(t, payload)

	later := codec.WithClock(func() time.Time { return base.Add(2 * time.Minute) })
	payload, err = later.Decode(signed)
	require.NoError(t, err)
	require.Nil(t, payload)
}
