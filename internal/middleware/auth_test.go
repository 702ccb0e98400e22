package middleware

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/questx-lab/badgehub/internal/model"
	"github.com/questx-lab/badgehub/pkg/errorx"
	"github.com/questx-lab/badgehub/pkg/jwt"
	"github.com/questx-lab/badgehub/pkg/testutil"
	"github.com/questx-lab/badgehub/pkg/xcontext"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	ctx := testutil.MockContext()
	engine := jwt.NewEngine[model.AccessToken]("badgehub", "secret", time.Minute)
	authenticate := Authenticate(engine)

	lower := strings.ToLower(testutil.Recipient)
	token, err := engine.Generate(lower, model.AccessToken{Address: lower})
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/getMyHoldings", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	authCtx, err := authenticate(ctx, req)
	require.NoError(t, err)
	require.Equal(t, testutil.Recipient, xcontext.RequestUserID(authCtx))

	tests := []struct {
		name   string
		header string
	}{
		{name: "no header", header: ""},
		{name: "not bearer", header: "Basic " + token},
		{name: "bad token", header: "Bearer abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/getMyHoldings", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}

			_, err := authenticate(ctx, req)
			require.True(t, errorx.Is(err, errorx.Unauthenticated))
		})
	}

	other := jwt.NewEngine[model.AccessToken]("badgehub", "another-secret", time.Minute)
	forged, err := other.Generate(testutil.Buyer, model.AccessToken{Address: testutil.Buyer})
	require.NoError(t, err)

	req = httptest.NewRequest("GET", "/getMyHoldings", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	_, err = authenticate(ctx, req)
	require.True(t, errorx.Is(err, errorx.Unauthenticated))
}
