//go:build windows

package runner

func processAlive(int) bool {
	return false
}
