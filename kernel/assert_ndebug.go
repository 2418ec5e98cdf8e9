//go:build ndebug

package kernel

func assertImpl(cond bool, module, message string) {}
