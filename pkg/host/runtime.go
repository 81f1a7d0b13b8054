// Package host 对宿主标签管理运行时（utag 风格对象）建模。
// 运行时是可选的、部分已知的外部协作者：任何字段都可能缺失，
// 所有读取都必须经由带 ok 返回值的守卫访问器，缺失永不 panic。
package host

// TagConfig 加载器配置中单个标签的条目（loader.cfg[id]）
type TagConfig struct {
	Send      int               `json:"send"`
	Load      int               `json:"load"`
	LoadRules string            `json:"load_rules,omitempty"`
	Map       map[string]string `json:"map,omitempty"`
}

// Availability 运行时可用性：Absent（完全缺失）/ Partial（部分钩子）/ Full
type Availability int

const (
	AvailabilityAbsent Availability = iota
	AvailabilityPartial
	AvailabilityFull
)

func (a Availability) String() string {
	switch a {
	case AvailabilityFull:
		return "full"
	case AvailabilityPartial:
		return "partial"
	default:
		return "absent"
	}
}

// Runtime 宿主运行时的部分已知模式。View/Link 为公开触发入口；
// 其余访问器对应运行时的内省钩子，第二个返回值表示钩子是否存在。
type Runtime interface {
	View(data map[string]any, cb func(), uids []int)
	Link(data map[string]any, cb func(), uids []int)

	DataLayer() (map[string]any, bool)
	LoaderConfig() (map[int]TagConfig, bool)
	WorkQueue() ([]int, bool)
	RuleDiag() (map[int]int, bool)
}

// Probe 判定运行时的可用级别
func Probe(rt Runtime) Availability {
	if rt == nil {
		return AvailabilityAbsent
	}
	if _, ok := rt.(absent); ok {
		return AvailabilityAbsent
	}
	n := 0
	if _, ok := rt.DataLayer(); ok {
		n++
	}
	if _, ok := rt.LoaderConfig(); ok {
		n++
	}
	if _, ok := rt.WorkQueue(); ok {
		n++
	}
	if _, ok := rt.RuleDiag(); ok {
		n++
	}
	switch n {
	case 4:
		return AvailabilityFull
	case 0:
		return AvailabilityAbsent
	default:
		return AvailabilityPartial
	}
}

type absent struct{}

// Absent 返回完全缺失的运行时实现：入口为空操作，所有钩子不存在
func Absent() Runtime { return absent{} }

func (absent) View(map[string]any, func(), []int)      {}
func (absent) Link(map[string]any, func(), []int)      {}
func (absent) DataLayer() (map[string]any, bool)       { return nil, false }
func (absent) LoaderConfig() (map[int]TagConfig, bool) { return nil, false }
func (absent) WorkQueue() ([]int, bool)                { return nil, false }
func (absent) RuleDiag() (map[int]int, bool)           { return nil, false }

// Funcs 以可选函数字段组装运行时：nil 字段表示该钩子缺失。
// 适配只实现了部分模式的嵌入方。
type Funcs struct {
	ViewFn         func(data map[string]any, cb func(), uids []int)
	LinkFn         func(data map[string]any, cb func(), uids []int)
	DataLayerFn    func() map[string]any
	LoaderConfigFn func() map[int]TagConfig
	WorkQueueFn    func() []int
	RuleDiagFn     func() map[int]int
}

func (f *Funcs) View(data map[string]any, cb func(), uids []int) {
	if f.ViewFn != nil {
		f.ViewFn(data, cb, uids)
	}
}

func (f *Funcs) Link(data map[string]any, cb func(), uids []int) {
	if f.LinkFn != nil {
		f.LinkFn(data, cb, uids)
	}
}

func (f *Funcs) DataLayer() (map[string]any, bool) {
	if f.DataLayerFn == nil {
		return nil, false
	}
	return f.DataLayerFn(), true
}

func (f *Funcs) LoaderConfig() (map[int]TagConfig, bool) {
	if f.LoaderConfigFn == nil {
		return nil, false
	}
	return f.LoaderConfigFn(), true
}

func (f *Funcs) WorkQueue() ([]int, bool) {
	if f.WorkQueueFn == nil {
		return nil, false
	}
	return f.WorkQueueFn(), true
}

func (f *Funcs) RuleDiag() (map[int]int, bool) {
	if f.RuleDiagFn == nil {
		return nil, false
	}
	return f.RuleDiagFn(), true
}
