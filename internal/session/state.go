package session

// State is where the radio is believed to be during a session.
type State int

const (
	Unknown State = iota
	CommandMode
	BootloaderMode
	Failed
)

func (s State) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case CommandMode:
		return "command"
	case BootloaderMode:
		return "bootloader"
	case Failed:
		return "failed"
	default:
		return "invalid"
	}
}
