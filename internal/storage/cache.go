// Package storage 提供事件历史的尽力而为持久化缓存。
// 缓存不是事实来源：缺失、损坏、写满都静默降级，绝不向上抛错。
package storage

import (
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/goccy/go-json"
	"github.com/tidwall/sjson"
	"gorm.io/gorm"

	ilog "tagscope/internal/logger"
	"tagscope/pkg/model"
)

// eventRow 事件历史持久化行，载荷整体存 JSON
type eventRow struct {
	ID        string `gorm:"primaryKey;size:36"`
	Session   string `gorm:"index"`
	Type      string
	Timestamp time.Time
	Blob      string
}

// Cache 触发事件的重载存活缓存
type Cache struct {
	db    *gorm.DB
	limit int
	log   ilog.Logger

	warnOnce sync.Once
}

// Open 打开（或创建）sqlite 缓存。打开失败返回错误，
// 调用方应以 nil 缓存继续运行而不是中止。
func Open(dsn string, limit int, l ilog.Logger) (*Cache, error) {
	if l == nil {
		l = ilog.NewNop()
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: NewGormLogger(l)})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&eventRow{}); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = model.DefaultTunables().PersistLimit
	}
	return &Cache{db: db, limit: limit, log: l}, nil
}

// Save 持久化单条触发事件。数据层快照体积大且可重建，
// 入库前剥除；任何失败只记一次日志并触发一次性缓存清退。
func (c *Cache) Save(session model.SessionID, ev *model.FiringEvent) {
	if c == nil || c.db == nil || ev == nil {
		return
	}
	blob, err := json.Marshal(ev)
	if err != nil {
		c.degrade(err)
		return
	}
	s := string(blob)
	for _, field := range []string{"preDataLayer", "postDataLayer"} {
		if trimmed, err := sjson.Delete(s, field); err == nil {
			s = trimmed
		}
	}
	row := eventRow{
		ID:        ev.ID,
		Session:   string(session),
		Type:      string(ev.Type),
		Timestamp: ev.Timestamp,
		Blob:      s,
	}
	if err := c.db.Create(&row).Error; err != nil {
		c.degrade(err)
		return
	}
	c.prune(session)
}

// prune 裁剪到保留上限，旧者先出
func (c *Cache) prune(session model.SessionID) {
	var ids []string
	err := c.db.Model(&eventRow{}).
		Where("session = ?", string(session)).
		Order("timestamp desc").
		Offset(c.limit).
		Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return
	}
	c.db.Where("id IN ?", ids).Delete(&eventRow{})
}

// LoadRecent 加载最近 n 条事件，按时间正序返回，损坏行跳过
func (c *Cache) LoadRecent(session model.SessionID, n int) []model.FiringEvent {
	if c == nil || c.db == nil {
		return nil
	}
	if n <= 0 {
		n = c.limit
	}
	var rows []eventRow
	err := c.db.Where("session = ?", string(session)).
		Order("timestamp desc").
		Limit(n).
		Find(&rows).Error
	if err != nil {
		c.degrade(err)
		return nil
	}
	// 倒序取出最近 n 条，再翻回正序方便顺次回放
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	out := make([]model.FiringEvent, 0, len(rows))
	for _, r := range rows {
		var ev model.FiringEvent
		if err := json.Unmarshal([]byte(r.Blob), &ev); err != nil {
			c.log.Warn("跳过损坏的缓存行", "id", r.ID)
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Evict 清空缓存
func (c *Cache) Evict() {
	if c == nil || c.db == nil {
		return
	}
	c.db.Where("1 = 1").Delete(&eventRow{})
}

// degrade 持久化失败的统一处理：记一条日志并清退一次
func (c *Cache) degrade(err error) {
	c.warnOnce.Do(func() {
		c.log.Warn("持久化缓存降级", "error", err)
		c.Evict()
	})
}
