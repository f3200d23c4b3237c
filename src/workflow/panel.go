package workflow

// Command is the closed set of user actions a panel can report.
type Command int

const (
	CmdSave Command = iota
	CmdCopySave
	CmdCopyDelete
	CmdDelete
	CmdAdvance
	CmdBack
)

func (c Command) String() string {
	switch c {
	case CmdSave:
		return "save"
	case CmdCopySave:
		return "copy-save"
	case CmdCopyDelete:
		return "copy-delete"
	case CmdDelete:
		return "delete"
	case CmdAdvance:
		return "advance"
	case CmdBack:
		return "back"
	}
	return "unknown"
}

// Action is one panel report: a command plus its payload (the proposed
// name for the rename panel, the note draft for the note panel).
type Action struct {
	Command Command
	Payload string
}

// Panel is a UI surface the state machine drives. Show presents the
// panel with initial content and reports exactly one Action through
// respond; Close tears the surface down without a report.
type Panel interface {
	Show(initial string, respond func(Action))
	Close()
}

// Disposition maps terminal panel commands to dispositions. The bool is
// false for CmdAdvance/CmdBack, which are not terminal.
func (c Command) Disposition() (Disposition, bool) {
	switch c {
	case CmdSave:
		return Save, true
	case CmdCopySave:
		return CopySave, true
	case CmdCopyDelete:
		return CopyDelete, true
	case CmdDelete:
		return DeleteOnly, true
	}
	return 0, false
}
