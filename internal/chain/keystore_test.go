package chain

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func TestEncryptDecryptRoundTrip(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "hunter2")
	require.NoError(t, err)
	assert.NotContains(t, string(blob), testKeyHex)

	got, err := DecryptKey(blob, "hunter2")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestEncryptKeyAcceptsPrefix(t *testing.T) {
	blob, err := EncryptKey("0x"+testKeyHex, "pw")
	require.NoError(t, err)

	got, err := DecryptKey(blob, "pw")
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestDecryptKeyWrongPassword(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "correct")
	require.NoError(t, err)

	_, err = DecryptKey(blob, "wrong")
	assert.Error(t, err)
}

func TestEncryptKeyValidation(t *testing.T) {
	_, err := EncryptKey(testKeyHex, "")
	assert.Error(t, err)

	_, err = EncryptKey("not-hex", "pw")
	assert.Error(t, err)

	_, err = EncryptKey("abcd", "pw") // too short
	assert.Error(t, err)
}

func TestLoadKeyRawTakesPrecedence(t *testing.T) {
	got, err := LoadKey(KeyConfig{RawPrivateKey: "0x" + testKeyHex, EncryptedKeyPath: "/does/not/exist"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
	assert.False(t, strings.HasPrefix(got, "0x"))
}

func TestLoadKeyFromFile(t *testing.T) {
	blob, err := EncryptKey(testKeyHex, "filepw")
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, blob, 0o600))

	got, err := LoadKey(KeyConfig{EncryptedKeyPath: path, KeyPassword: "filepw"})
	require.NoError(t, err)
	assert.Equal(t, testKeyHex, got)
}

func TestLoadKeyNoSource(t *testing.T) {
	_, err := LoadKey(KeyConfig{})
	assert.Error(t, err)
}
