package model

import "time"

type SessionID string

// Transport 出站调用使用的网络原语
type Transport string

const (
	TransportFetch  Transport = "fetch"
	TransportXHR    Transport = "xhr"
	TransportBeacon Transport = "beacon"
)

// RequestState 请求生命周期状态：拦截时以 pending 创建，完成或失败时恰好再变更一次
type RequestState string

const (
	StatePending RequestState = "pending"
	StateDone    RequestState = "done"
	StateError   RequestState = "error"
)

// BodyKind 请求体的原始语义
type BodyKind string

const (
	BodyNone   BodyKind = "none"
	BodyText   BodyKind = "text"
	BodyJSON   BodyKind = "json"
	BodyForm   BodyKind = "form"
	BodyBinary BodyKind = "binary"
)

// HeaderField 单个请求头，切片顺序即设置顺序
type HeaderField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// NetworkRecord 一次被观测到的出站调用
type NetworkRecord struct {
	ID             string        `json:"id"`
	Session        SessionID     `json:"session,omitempty"`
	Transport      Transport     `json:"transport"`
	Method         string        `json:"method"`
	URL            string        `json:"url"`
	RequestHeaders []HeaderField `json:"requestHeaders,omitempty"`
	Body           string        `json:"body,omitempty"`
	BodyKind       BodyKind      `json:"bodyKind"`
	Start          time.Time     `json:"start"`

	State        RequestState  `json:"state"`
	StatusCode   int           `json:"statusCode,omitempty"`
	Error        string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	ResponseSize int64         `json:"responseSize,omitempty"`

	// 创建时计算一次，之后不可变
	TagRelated bool   `json:"tagRelated"`
	Vendor     string `json:"vendor"`

	// External 表示记录经由外部摄入（CDP / HTTP），未经过传输层包装
	External bool `json:"external,omitempty"`
}

// EventType 触发事件类型
type EventType string

const (
	EventView EventType = "view"
	EventLink EventType = "link"
)

// DiffKind 数据层差异类型
type DiffKind string

const (
	DiffAdded   DiffKind = "added"
	DiffRemoved DiffKind = "removed"
	DiffChanged DiffKind = "changed"
)

// DiffEntry 数据层前后快照的单个结构差异，键为扁平化的点路径
type DiffEntry struct {
	Key    string   `json:"key"`
	Kind   DiffKind `json:"kind"`
	Before string   `json:"before,omitempty"`
	After  string   `json:"after,omitempty"`
}

// Severity 校验结果级别
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// ValidationResult 单条校验结果
type ValidationResult struct {
	Severity Severity  `json:"severity"`
	Message  string    `json:"message"`
	At       time.Time `json:"at"`
}

// FiringEvent 一次 view/link 调用及其关联产物
type FiringEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Payload   map[string]any `json:"payload,omitempty"`
	Timestamp time.Time      `json:"timestamp"`

	// PreDataLayer 在被包装调用执行前同步捕获；PostDataLayer 延迟约 100ms 捕获
	PreDataLayer  map[string]any `json:"preDataLayer,omitempty"`
	PostDataLayer map[string]any `json:"postDataLayer,omitempty"`

	FiredTagIDs []int              `json:"firedTagIds"`
	Diff        []DiffEntry        `json:"diff,omitempty"`
	Results     []ValidationResult `json:"results,omitempty"`
}

// EvidenceSource 标签活动证据来源
type EvidenceSource string

const (
	SourceConsoleLog     EvidenceSource = "consoleLog"
	SourceNetworkRequest EvidenceSource = "networkRequest"
	SourceLoaderPoll     EvidenceSource = "loaderConfigPoll"
	SourceWorkQueue      EvidenceSource = "workQueue"
)

// TagActivityRecord 某个标签曾经触发过的瞬态证据
type TagActivityRecord struct {
	TagID    int            `json:"tagId"`
	LastSeen time.Time      `json:"lastSeen"`
	Source   EvidenceSource `json:"source"`
}

// SourceKind 参数解码来源
type SourceKind string

const (
	ParamURL          SourceKind = "url"
	ParamForm         SourceKind = "form"
	ParamJSON         SourceKind = "json"
	ParamNestedBeacon SourceKind = "nestedBeacon"
)

// Category 参数语义分类，封闭集合
type Category string

const (
	CategoryPage         Category = "Page"
	CategoryUser         Category = "User"
	CategoryProduct      Category = "Product"
	CategoryEvent        Category = "Event"
	CategoryCommerce     Category = "Commerce"
	CategoryCampaign     Category = "Campaign"
	CategoryDOM          Category = "DOM"
	CategoryBrowser      Category = "Browser"
	CategoryTealium      Category = "Tealium-internal"
	CategoryLocalStorage Category = "Local-Storage"
	CategoryCookie       Category = "Cookie"
	CategoryTechnical    Category = "Technical"
	CategoryCustom       Category = "Custom"
)

// Parameter 从请求中解码出的单个字段，值已完成 URL 解码
type Parameter struct {
	Key      string     `json:"key"`
	Value    string     `json:"value"`
	Source   SourceKind `json:"source"`
	Category Category   `json:"category"`
}

// ConsoleLine 控制台环形缓冲中的一行
type ConsoleLine struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// Stats 会话级统计
type Stats struct {
	Requests   int `json:"requests"`
	TagRelated int `json:"tagRelated"`
	Pending    int `json:"pending"`
	Events     int `json:"events"`
	Console    int `json:"console"`
}

// SessionConfig 会话配置
type SessionConfig struct {
	PageHost    string   `json:"pageHost"`
	DevToolsURL string   `json:"devToolsURL,omitempty"`
	CdpTarget   string   `json:"cdpTarget,omitempty"`
	CacheDSN    string   `json:"cacheDSN,omitempty"`
	Tunables    Tunables `json:"tunables"`
}
