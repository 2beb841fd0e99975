package logger

import "sync"

// named caches component loggers so hot paths do not rebuild zerolog
// contexts on every call.
var named sync.Map // map[string]*Logger

// Register stores a named logger, replacing any cached one.
func Register(name string, l *Logger) {
	named.Store(name, l)
}

// Get returns the logger registered under name. Unknown names get the global
// logger tagged with the component name, cached for later calls.
func Get(name string) *Logger {
	if l, ok := named.Load(name); ok {
		return l.(*Logger)
	}
	l, _ := named.LoadOrStore(name, GetGlobalLogger().WithComponent(name))
	return l.(*Logger)
}

// Reset drops every cached component logger. Call it after Init so
// components pick up the new global configuration.
func Reset() {
	named.Range(func(k, _ any) bool {
		named.Delete(k)
		return true
	})
}
