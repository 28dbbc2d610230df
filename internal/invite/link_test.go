package invite

import (
	"testing"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLink_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		link Link
		want string
	}{
		{
			name: "plain host",
			link: Link{BaseURL: "https://vault.example.com/", VaultID: "v1", InviteID: "i1", Token: "abc"},
			want: "https://vault.example.com/invite/v1/i1?verify=abc",
		},
		{
			name: "base with path",
			link: Link{BaseURL: "http://localhost:8080/app", VaultID: "v 2", InviteID: "i2", Token: "t+1"},
			want: "http://localhost:8080/app/invite/v%202/i2?verify=t%2B1",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := tt.link.String()
			assert.Equal(t, tt.want, s)

			parsed, err := ParseLink(s)
			require.NoError(t, err)
			assert.Equal(t, tt.link.VaultID, parsed.VaultID)
			assert.Equal(t, tt.link.InviteID, parsed.InviteID)
			assert.Equal(t, tt.link.Token, parsed.Token)
			assert.Equal(t, s, parsed.String())
		})
	}
}

func TestParseLink_Invalid(t *testing.T) {
	for _, raw := range []string{
		"",
		"https://x/invite/v1/i1",
		"https://x/other/v1/i1?verify=t",
		"https://x/invite/v1?verify=t",
		"::not a url",
	} {
		_, err := ParseLink(raw)
		assert.ErrorIs(t, err, common.ErrInvalidInvite, raw)
	}
}

func TestLink_QR(t *testing.T) {
	l := Link{BaseURL: "https://x", VaultID: "v", InviteID: "i", Token: "t"}
	qr, err := l.QR()
	require.NoError(t, err)
	assert.NotEmpty(t, qr)

	png, err := l.PNG(128)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])
}
