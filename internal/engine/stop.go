package engine

import (
	"os"
)

// Workers poll for a stop file so `workbox worker stop` works across
// processes on platforms without a usable signal mechanism.

const stopFile = ".workbox-stop"

func ShouldStop() bool {
	_, err := os.Stat(stopFile)
	return err == nil
}

func CreateStopFile() error {
	return os.WriteFile(stopFile, []byte("stop"), 0644)
}

func RemoveStopFile() {
	_ = os.Remove(stopFile)
}
