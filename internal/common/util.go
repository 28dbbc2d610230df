package common

// WipeByteArray overwrites b with zeros. Key material and passwords are
// wiped as soon as they are no longer needed.
func WipeByteArray(b []byte) {
	clear(b)
}
