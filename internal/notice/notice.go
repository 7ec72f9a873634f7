// Package notice carries user-facing outcome messages (the front-end renders them as toasts).
package notice

// Level selects how a notice is rendered.
type Level string

const (
	Success     Level = "success"
	Warning     Level = "warning"
	Destructive Level = "destructive"
)

type Notice struct {
	Level   Level  `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
}

// List accumulates notices for one operation.
type List []Notice

func (l *List) Success(title, msg string) { *l = append(*l, Notice{Success, title, msg}) }
func (l *List) Warn(title, msg string)    { *l = append(*l, Notice{Warning, title, msg}) }

// Fail records a destructive notice carrying err's message.
func (l *List) Fail(title string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	*l = append(*l, Notice{Destructive, title, msg})
}

// Has reports whether any notice has the level.
func (l List) Has(level Level) bool {
	for _, n := range l {
		if n.Level == level {
			return true
		}
	}
	return false
}
