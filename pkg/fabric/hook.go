package fabric

import "sync"

// builderHook is the process-wide "create hook" singleton (spec §9):
// it exists only because a host scripting runtime instantiating this
// driver through language-binding glue has no place to pass a closure,
// so the glue stashes its RegisterFunc here before calling into code
// that eventually calls New. Out of scope for this core (the glue
// itself is an external collaborator, spec §1), but the hook point is
// specified so that glue can exist.
var (
	builderHookMu sync.Mutex
	builderHook   RegisterFunc
)

// SetBuilderHook installs fn as the process-wide registration callback.
// Each call replaces the previously installed hook (a second call
// overwrites the first), matching the original's single global function
// pointer (spec §9). Safe for
// concurrent use; typically called exactly once, before the host
// runtime's glue invokes BuilderHook.
func SetBuilderHook(fn RegisterFunc) {
	builderHookMu.Lock()
	defer builderHookMu.Unlock()
	builderHook = fn
}

// BuilderHook returns the currently installed hook, or nil if none has
// been set.
func BuilderHook() RegisterFunc {
	builderHookMu.Lock()
	defer builderHookMu.Unlock()
	return builderHook
}
