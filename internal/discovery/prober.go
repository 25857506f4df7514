package discovery

import (
	"os/exec"
	"runtime"
	"strconv"
	"time"
)

// Prober decides whether an address is reachable before it is admitted to
// the neighbor table (spec §4.C): beacon receipt alone is insufficient
// because wireless links are frequently unidirectional.
type Prober interface {
	Probe(ip string, timeout time.Duration) bool
}

// PingProber shells out to the system ping binary, one echo request,
// mirroring the original implementation's subprocess.Popen(['ping', '-c',
// '1', '-W', '1', ip]) call (spec §9).
type PingProber struct{}

// Probe sends a single ICMP echo and reports success within timeout.
func (PingProber) Probe(ip string, timeout time.Duration) bool {
	secs := int(timeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	var args []string
	if runtime.GOOS == "windows" {
		args = []string{"-n", "1", "-w", strconv.Itoa(secs * 1000), ip}
	} else {
		args = []string{"-c", "1", "-W", strconv.Itoa(secs), ip}
	}
	cmd := exec.Command("ping", args...)
	return cmd.Run() == nil
}
