package prof

// Profile names a pprof profile.
type Profile string

// Profiles written by a session.
const (
	ProfileCPU       Profile = "cpu"
	ProfileHeap      Profile = "heap"
	ProfileGoroutine Profile = "goroutine"
	ProfileBlock     Profile = "block"
	ProfileMutex     Profile = "mutex"
)

// String returns the pprof name of the profile.
func (p Profile) String() string {
	return string(p)
}

// Config names the output file of each profile. Empty paths are skipped.
type Config struct {
	CPU       string
	Heap      string
	Goroutine string
	Block     string
	Mutex     string
}

// Empty reports whether no profile is requested.
func (c Config) Empty() bool {
	return c == Config{}
}

type snapshot struct {
	profile Profile
	path    string
}

// snapshots lists the point-in-time profiles to write on stop.
func (c Config) snapshots() []snapshot {
	var list []snapshot
	for _, s := range []snapshot{
		{ProfileHeap, c.Heap},
		{ProfileGoroutine, c.Goroutine},
		{ProfileBlock, c.Block},
		{ProfileMutex, c.Mutex},
	} {
		if s.path != "" {
			list = append(list, s)
		}
	}
	return list
}
