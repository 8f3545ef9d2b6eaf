package log

import "go.uber.org/atomic"

var (
	_ WithLogger   = &Binder{}
	_ LoggerBinder = &Binder{}
)

type WithLogger interface {
	Logger() *MLogger
}

type LoggerBinder interface {
	SetLogger(logger *MLogger)
}

// Binder 可嵌入到组件中，使组件持有可替换的 Logger。
// 未设置时回退到带组件字段的全局 Logger。
type Binder struct {
	logger    atomic.Pointer[MLogger]
	component string
}

// BindComponent 设置回退 Logger 使用的组件名。
func (w *Binder) BindComponent(component string) {
	w.component = component
}

func (w *Binder) SetLogger(logger *MLogger) {
	w.logger.Store(logger)
}

func (w *Binder) Logger() *MLogger {
	l := w.logger.Load()
	if l != nil {
		return l
	}
	if w.component != "" {
		return With(FieldComponent(w.component))
	}
	return With()
}
