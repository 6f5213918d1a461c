package proxy

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// The pid record is a one-line text file. Presence means "possibly
// running"; absence means "definitely not running unprivileged".

func writePID(path string, pid int) error {
	return os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644)
}

func readPID(path string) (int, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		// A garbage pid file is as good as no pid file.
		fmt.Printf("Warning: ignoring malformed pid file %s\n", path)
		return 0, false
	}
	return pid, true
}
