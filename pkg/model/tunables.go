package model

import "time"

// Tunables 经验性的时间窗口与容量常量。取值来自对真实站点的观测调参，
// 可整体覆盖但不建议单独重推导。
type Tunables struct {
	// 归因各信号源的新鲜度窗口
	ConsoleWindow  time.Duration `json:"consoleWindow" koanf:"consolewindow"`
	NetworkWindow  time.Duration `json:"networkWindow" koanf:"networkwindow"`
	ActivityWindow time.Duration `json:"activityWindow" koanf:"activitywindow"`

	// 触发事件流水线的调度延迟
	PostSnapshotDelay time.Duration `json:"postSnapshotDelay" koanf:"postsnapshotdelay"`
	ConfirmDelay      time.Duration `json:"confirmDelay" koanf:"confirmdelay"`

	// 后台周期任务
	PollInterval  time.Duration `json:"pollInterval" koanf:"pollinterval"`
	SweepInterval time.Duration `json:"sweepInterval" koanf:"sweepinterval"`
	ActivityTTL   time.Duration `json:"activityTTL" koanf:"activityttl"`

	// 环形缓冲容量
	RequestCap int `json:"requestCap" koanf:"requestcap"`
	ConsoleCap int `json:"consoleCap" koanf:"consolecap"`
	EventCap   int `json:"eventCap" koanf:"eventcap"`

	// UI 刷新合并窗口
	RefreshThrottle time.Duration `json:"refreshThrottle" koanf:"refreshthrottle"`

	// 控制台出现 sendBeacon 标记时默认归因到的标签 ID
	BeaconMarkerTagID int `json:"beaconMarkerTagId" koanf:"beaconmarkertagid"`

	// 持久化保留的事件条数
	PersistLimit int `json:"persistLimit" koanf:"persistlimit"`
}

// DefaultTunables 返回默认调参
func DefaultTunables() Tunables {
	return Tunables{
		ConsoleWindow:     5 * time.Second,
		NetworkWindow:     3 * time.Second,
		ActivityWindow:    10 * time.Second,
		PostSnapshotDelay: 100 * time.Millisecond,
		ConfirmDelay:      time.Second,
		PollInterval:      time.Second,
		SweepInterval:     30 * time.Second,
		ActivityTTL:       30 * time.Second,
		RequestCap:        200,
		ConsoleCap:        500,
		EventCap:          50,
		RefreshThrottle:   250 * time.Millisecond,
		BeaconMarkerTagID: 12,
		PersistLimit:      25,
	}
}

// Normalize 为零值字段填入默认值，允许调用方只覆盖部分常量
func (t Tunables) Normalize() Tunables {
	d := DefaultTunables()
	if t.ConsoleWindow <= 0 {
		t.ConsoleWindow = d.ConsoleWindow
	}
	if t.NetworkWindow <= 0 {
		t.NetworkWindow = d.NetworkWindow
	}
	if t.ActivityWindow <= 0 {
		t.ActivityWindow = d.ActivityWindow
	}
	if t.PostSnapshotDelay <= 0 {
		t.PostSnapshotDelay = d.PostSnapshotDelay
	}
	if t.ConfirmDelay <= 0 {
		t.ConfirmDelay = d.ConfirmDelay
	}
	if t.PollInterval <= 0 {
		t.PollInterval = d.PollInterval
	}
	if t.SweepInterval <= 0 {
		t.SweepInterval = d.SweepInterval
	}
	if t.ActivityTTL <= 0 {
		t.ActivityTTL = d.ActivityTTL
	}
	if t.RequestCap <= 0 {
		t.RequestCap = d.RequestCap
	}
	if t.ConsoleCap <= 0 {
		t.ConsoleCap = d.ConsoleCap
	}
	if t.EventCap <= 0 {
		t.EventCap = d.EventCap
	}
	if t.RefreshThrottle <= 0 {
		t.RefreshThrottle = d.RefreshThrottle
	}
	if t.BeaconMarkerTagID == 0 {
		t.BeaconMarkerTagID = d.BeaconMarkerTagID
	}
	if t.PersistLimit <= 0 {
		t.PersistLimit = d.PersistLimit
	}
	return t
}
