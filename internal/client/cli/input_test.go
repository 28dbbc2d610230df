package cli

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/dmitrijs2005/vaultsync/internal/common"
	"github.com/dmitrijs2005/vaultsync/internal/vault"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rdr(s string) *bufio.Reader {
	return bufio.NewReader(strings.NewReader(s))
}

func TestGetSimpleText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("  hello world \n"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "hello world", got)
	assert.Equal(t, "Name?\n> ", out.String())
}

func TestGetSimpleTextEOF(t *testing.T) {
	var out bytes.Buffer
	got, err := GetSimpleText(rdr("lastline"), "Name?", &out)
	require.NoError(t, err)
	assert.Equal(t, "lastline", got)

	_, err = GetSimpleText(rdr(""), "Name?", &out)
	assert.ErrorIs(t, err, io.EOF)
}

func TestGetDefaultText(t *testing.T) {
	var out bytes.Buffer
	got, err := GetDefaultText(rdr("\n"), "Email", "ann@example.com", &out)
	require.NoError(t, err)
	assert.Equal(t, "ann@example.com", got)
	assert.Contains(t, out.String(), "Email [ann@example.com]")

	got, err = GetDefaultText(rdr("bob@example.com\n"), "Email", "ann@example.com", &out)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", got)
}

func TestGetMultiline_DoubleEnter(t *testing.T) {
	var out bytes.Buffer
	got, err := GetMultiline(rdr("a\nb\n\n\n"), "Enter text", &out)
	require.NoError(t, err)
	assert.Equal(t, "a\nb", got)
}

func TestGetPassword(t *testing.T) {
	old := readPassword
	t.Cleanup(func() { readPassword = old })

	readPassword = func(int) ([]byte, error) { return []byte("pw"), nil }
	var out bytes.Buffer
	pw, err := GetPassword(&out, "Master password")
	require.NoError(t, err)
	assert.Equal(t, []byte("pw"), pw)
	assert.Equal(t, "Master password: \n", out.String())

	readPassword = func(int) ([]byte, error) { return nil, errors.New("boom") }
	_, err = GetPassword(&out, "Master password")
	assert.Error(t, err)
}

func TestGetNewPassword(t *testing.T) {
	tests := []struct {
		name    string
		answers []string
		want    string
		wantErr error
	}{
		{name: "matching", answers: []string{"s3cret", "s3cret"}, want: "s3cret"},
		{name: "mismatch", answers: []string{"s3cret", "other"}, wantErr: errPasswordMismatch},
		{name: "empty", answers: []string{"", ""}, wantErr: common.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stubPasswords(t, tt.answers...)
			got, err := GetNewPassword(io.Discard, "New password")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestGetFields(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []vault.Field
		wantErr  bool
	}{
		{
			name:  "Unix newlines, stop on empty line",
			input: "url=https://example.com\npin*=1234\n\n",
			expected: []vault.Field{
				{Name: "url", Value: "https://example.com"},
				{Name: "pin", Value: "1234", Masked: true},
			},
		},
		{
			name:     "Windows CRLF",
			input:    "a=1\r\n\r\n",
			expected: []vault.Field{{Name: "a", Value: "1"}},
		},
		{
			name:     "Immediate blank line gives empty slice",
			input:    "\n",
			expected: []vault.Field{},
		},
		{
			name:     "EOF without trailing blank line",
			input:    " name = value ",
			expected: []vault.Field{{Name: "name", Value: "value"}},
		},
		{
			name:     "Value may contain '='",
			input:    "query=a=b\n\n",
			expected: []vault.Field{{Name: "query", Value: "a=b"}},
		},
		{name: "Missing separator", input: "oops\n\n", wantErr: true},
		{name: "Missing name", input: "=value\n\n", wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := GetFields(rdr(tc.input), io.Discard)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, got)
		})
	}
}
