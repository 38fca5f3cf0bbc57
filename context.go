package enqueue

import "fmt"

// Context selects the host lifecycle an Enqueuer serves.
type Context string

const (
	ContextPublic Context = "public"
	ContextAdmin  Context = "admin"
	ContextLogin  Context = "login"
)

// ShutdownHook fires once at the end of every host request.
const ShutdownHook = "shutdown"

// ParseContext converts a string into a Context.
func ParseContext(value string) (Context, error) {
	switch Context(value) {
	case "", ContextPublic:
		return ContextPublic, nil
	case ContextAdmin, ContextLogin:
		return Context(value), nil
	default:
		return "", fmt.Errorf("%w: unknown context %q", ErrConfig, value)
	}
}

// EnqueueHook is the standard hook on which assets for the context are
// enqueued.
func (c Context) EnqueueHook() string {
	switch c {
	case ContextAdmin:
		return "admin_enqueue_scripts"
	case ContextLogin:
		return "login_enqueue_scripts"
	default:
		return "wp_enqueue_scripts"
	}
}

// LateHook is a hook that fires after the enqueue phase but before tags are
// printed. Inline content for handles owned by someone else is attached there.
func (c Context) LateHook(t AssetType) string {
	style := t == Style
	switch c {
	case ContextAdmin:
		if style {
			return "admin_print_styles"
		}
		return "admin_print_scripts"
	case ContextLogin:
		return "login_head"
	default:
		if style {
			return "wp_print_styles"
		}
		return "wp_print_scripts"
	}
}
