// Package validate 对刚触发的事件做同步规则评估，产出带级别的检查清单。
// 网络确认天然异步，以占位结果 + 延迟原地升级的两段式完成。
package validate

import (
	"fmt"
	"time"

	"tagscope/internal/attribution"
	"tagscope/internal/logger"
	"tagscope/internal/store"
	"tagscope/pkg/host"
	"tagscope/pkg/model"
)

// Validator 事件校验器
type Validator struct {
	store   *store.Store
	engine  *attribution.Engine
	runtime func() host.Runtime
	tun     model.Tunables
	log     logger.Logger
	now     func() time.Time
	after   func(time.Duration, func()) *time.Timer
}

// New 创建校验器
func New(st *store.Store, engine *attribution.Engine, runtime func() host.Runtime, tun model.Tunables, log logger.Logger) *Validator {
	if log == nil {
		log = logger.NewNop()
	}
	return &Validator{
		store:   st,
		engine:  engine,
		runtime: runtime,
		tun:     tun.Normalize(),
		log:     log,
		now:     time.Now,
		after:   time.AfterFunc,
	}
}

// SetClock 注入时钟与定时器，测试用
func (v *Validator) SetClock(now func() time.Time, after func(time.Duration, func()) *time.Timer) {
	v.now = now
	v.after = after
}

// Validate 按固定顺序评估规则，返回结果清单与归因到的标签集合。
// 最后一条是网络确认占位结果，需随后调用 ScheduleConfirm 升级。
func (v *Validator) Validate(evType model.EventType, payload map[string]any) ([]model.ValidationResult, []int) {
	at := v.now()
	var out []model.ValidationResult
	add := func(sev model.Severity, msg string) {
		out = append(out, model.ValidationResult{Severity: sev, Message: msg, At: at})
	}

	// 1. 事件触发事实
	add(model.SeverityInfo, fmt.Sprintf("%s 事件已触发于 %s", evType, at.Format(time.RFC3339)))

	rt := v.currentRuntime()
	if host.Probe(rt) == host.AvailabilityAbsent {
		add(model.SeverityWarning, "宿主运行时缺失，后续检查已降级")
	}

	// 2. 载荷规模
	if len(payload) == 0 {
		add(model.SeverityWarning, "事件载荷为空（0 个键）")
	} else {
		add(model.SeveritySuccess, fmt.Sprintf("事件载荷包含 %d 个键", len(payload)))
	}

	// 3. 标签归因
	var tags []int
	if v.engine != nil {
		tags = v.engine.Resolve(0)
	}
	if len(tags) == 0 {
		add(model.SeverityWarning, "未归因到任何标签")
	} else {
		add(model.SeveritySuccess, fmt.Sprintf("归因到标签 %v", tags))
	}

	// 4. 加载规则结构性存在与否
	if cfg, ok := rt.LoaderConfig(); ok {
		n := 0
		for _, tc := range cfg {
			if tc.LoadRules != "" {
				n++
			}
		}
		if n > 0 {
			add(model.SeverityInfo, fmt.Sprintf("%d 个标签挂有加载规则", n))
		}
	}

	// 5. 数据层规模
	if dl, ok := rt.DataLayer(); ok {
		add(model.SeverityInfo, fmt.Sprintf("数据层当前共 %d 个键", len(dl)))
	}

	// 6. 网络确认占位，稍后异步原地升级
	add(model.SeverityInfo, "正在检查网络活动…")

	return out, tags
}

// ScheduleConfirm 在固定延迟后检查归因标签的实际网络证据，
// 并原地升级占位结果。确认步骤总会触发，没有提前取消路径。
func (v *Validator) ScheduleConfirm(eventID string, idx int, tags []int) {
	window := v.tun.ConfirmDelay + v.tun.NetworkWindow
	v.after(v.tun.ConfirmDelay, func() {
		res := v.confirm(tags, window)
		if !v.store.UpdateEventResult(eventID, idx, res) {
			v.log.Debug("网络确认时事件已被淘汰", "event", eventID)
		}
	})
}

func (v *Validator) confirm(tags []int, window time.Duration) model.ValidationResult {
	at := v.now()
	tagSet := make(map[int]struct{}, len(tags))
	for _, id := range tags {
		tagSet[id] = struct{}{}
	}
	related := 0
	matched := 0
	for _, rec := range v.store.RequestsSince(window) {
		if !rec.TagRelated {
			continue
		}
		related++
		if id, ok := attribution.URLTagID(rec.URL); ok {
			if _, hit := tagSet[id]; hit {
				matched++
			}
		}
	}
	switch {
	case matched > 0:
		return model.ValidationResult{Severity: model.SeveritySuccess, At: at,
			Message: fmt.Sprintf("已观测到 %d 条与归因标签对应的网络请求", matched)}
	case related > 0:
		return model.ValidationResult{Severity: model.SeveritySuccess, At: at,
			Message: fmt.Sprintf("已观测到 %d 条标签相关网络请求", related)}
	default:
		return model.ValidationResult{Severity: model.SeverityWarning, At: at,
			Message: "未发现网络证据"}
	}
}

func (v *Validator) currentRuntime() host.Runtime {
	if v.runtime == nil {
		return host.Absent()
	}
	rt := v.runtime()
	if rt == nil {
		return host.Absent()
	}
	return rt
}
