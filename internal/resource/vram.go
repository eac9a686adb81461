package resource

import (
	"bufio"
	"os/exec"
	"strconv"
	"strings"
)

// MinVRAMGB is the floor below which a local engine is not considered
// viable and the dispatcher should prefer a remote fallback instead.
const MinVRAMGB = 4.0

// FreeVRAMGB shells out to nvidia-smi to read free VRAM across GPU 0,
// mirroring the local/remote viability check original engines run
// before committing to a GPU-resident model. Returns ok=false when no
// NVIDIA tooling is present (CPU-only or non-NVIDIA host), in which
// case callers should treat local engines as unavailable rather than error.
func FreeVRAMGB() (gb float64, ok bool) {
	out, err := exec.Command("nvidia-smi", "--query-gpu=memory.free", "--format=csv,noheader,nounits").Output()
	if err != nil {
		return 0, false
	}

	scanner := bufio.NewScanner(strings.NewReader(string(out)))
	if !scanner.Scan() {
		return 0, false
	}
	mib, err := strconv.ParseFloat(strings.TrimSpace(scanner.Text()), 64)
	if err != nil {
		return 0, false
	}
	return mib / 1024.0, true
}

// LocalEngineViable reports whether the host currently has enough free
// VRAM to run a local GPU-resident model.
func LocalEngineViable() bool {
	gb, ok := FreeVRAMGB()
	if !ok {
		return false
	}
	return gb >= MinVRAMGB
}
