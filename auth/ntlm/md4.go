package ntlm

import (
	"time"

	"golang.org/x/crypto/md4"
)

func md4Hash(data []byte) []byte {
	h := md4.New()
	h.Write(data)
	return h.Sum(nil)
}

// windowsEpochNow returns the current time as a Windows FILETIME: the
// number of 100-nanosecond intervals since 1601-01-01.
func windowsEpochNow() uint64 {
	const windowsEpochOffsetSeconds = 11644473600
	now := time.Now().UTC()
	secsSinceWindowsEpoch := now.Unix() + windowsEpochOffsetSeconds
	return uint64(secsSinceWindowsEpoch)*10000000 + uint64(now.Nanosecond()/100)
}
