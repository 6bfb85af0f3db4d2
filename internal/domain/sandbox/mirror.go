package sandbox

// Mirror mounts into a primary sandbox and replays the same document in a
// headless runtime under the primary's token, so reports can be matched to
// the mount a browser is looking at.
type Mirror struct {
	primary Sandbox
	runtime *Runtime
}

// NewMirror pairs primary with runtime. A nil runtime makes Mirror a plain
// pass-through.
func NewMirror(primary Sandbox, runtime *Runtime) *Mirror {
	return &Mirror{primary: primary, runtime: runtime}
}

func (m *Mirror) Mount(document string) (Handle, error) {
	h, err := m.primary.Mount(document)
	if err != nil {
		return Handle{}, err
	}
	if m.runtime != nil {
		if err := m.runtime.Attach(h, document); err != nil {
			m.primary.Unmount(h)
			return Handle{}, err
		}
	}
	return h, nil
}

func (m *Mirror) Unmount(h Handle) {
	if m.runtime != nil {
		m.runtime.Detach(h)
	}
	m.primary.Unmount(h)
}
