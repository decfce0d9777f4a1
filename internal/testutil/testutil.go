// Package testutil 为各层单元测试提供 sqlite 数据库与 miniredis 实例。
package testutil

import (
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"qa-smart-go/internal/config"
	"qa-smart-go/internal/model"
	"qa-smart-go/pkg/database"
)

// NewDB 在临时目录中创建一个已完成迁移的 sqlite 数据库。
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: filepath.Join(t.TempDir(), "test.db")},
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.User{}, &model.Category{}, &model.Tag{}, &model.Question{}))

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// NewRedis 启动一个 miniredis 并返回连接到它的客户端。
func NewRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

// Fixture 持有一棵测试用分类树及其关联数据，按名称索引。
type Fixture struct {
	Categories map[string]*model.Category
	Tags       map[string]*model.Tag
	Questions  map[string]*model.Question
	Admin      *model.User
}

// MustCategory 在 parent 下创建一个分类，parent 为 nil 时创建根节点。
func MustCategory(t *testing.T, db *gorm.DB, name string, parent *model.Category) *model.Category {
	t.Helper()
	cat := &model.Category{Name: name}
	if parent != nil {
		cat.ParentID = &parent.ID
		cat.Level = parent.Level + 1
	}
	require.NoError(t, db.Create(cat).Error)
	return cat
}

// MustUser 创建一个指定角色的用户。
func MustUser(t *testing.T, db *gorm.DB, username, role string) *model.User {
	t.Helper()
	u := &model.User{Username: username, Password: "x", Role: role}
	require.NoError(t, db.Create(u).Error)
	return u
}

// SeedTree 构造如下结构的分类树、标签与问题：
//
//	Everything
//	├── C1 (tag1)
//	│   ├── C3 (tag3)
//	│   │   └── C9 (tag9)
//	│   │       └── C10 (tagA)
//	│   └── C4 (tag4)
//	└── C2 (tag2)
//	    ├── C5 (tag5, tag4)
//	    └── C6
//
// 问题 Qn 带有标签 tagn；QA 带有 tagA；Q5 同时带有 tag4 与 tag5。
func SeedTree(t *testing.T, db *gorm.DB) *Fixture {
	t.Helper()
	f := &Fixture{
		Categories: make(map[string]*model.Category),
		Tags:       make(map[string]*model.Tag),
		Questions:  make(map[string]*model.Question),
	}
	f.Admin = MustUser(t, db, "admin", model.RoleAdmin)

	root := MustCategory(t, db, "Everything", nil)
	f.Categories["Everything"] = root
	add := func(name, parent string) {
		f.Categories[name] = MustCategory(t, db, name, f.Categories[parent])
	}
	add("C1", "Everything")
	add("C2", "Everything")
	add("C3", "C1")
	add("C4", "C1")
	add("C5", "C2")
	add("C6", "C2")
	add("C9", "C3")
	add("C10", "C9")

	for _, name := range []string{"tag1", "tag2", "tag3", "tag4", "tag5", "tag9", "tagA", "tagB"} {
		tag := &model.Tag{Name: name, CreatedBy: f.Admin.ID}
		require.NoError(t, db.Create(tag).Error)
		f.Tags[name] = tag
	}
	link := func(cat string, tags ...string) {
		for _, tn := range tags {
			require.NoError(t, db.Model(f.Tags[tn]).Association("Categories").Append(f.Categories[cat]))
		}
	}
	link("C1", "tag1")
	link("C2", "tag2")
	link("C3", "tag3")
	link("C4", "tag4")
	link("C5", "tag5", "tag4")
	link("C9", "tag9")
	link("C10", "tagA")

	ask := func(name string, tags ...string) {
		q := &model.Question{Title: name, Body: name, AuthorID: f.Admin.ID}
		for _, tn := range tags {
			q.Tags = append(q.Tags, *f.Tags[tn])
			require.NoError(t, db.Model(&model.Tag{}).Where("id = ?", f.Tags[tn].ID).
				Update("used_count", gorm.Expr("used_count + 1")).Error)
		}
		require.NoError(t, db.Create(q).Error)
		f.Questions[name] = q
	}
	ask("Q1", "tag1")
	ask("Q2", "tag2")
	ask("Q3", "tag3")
	ask("Q4", "tag4")
	ask("Q5", "tag4", "tag5")
	ask("Q9", "tag9")
	ask("QA", "tagA")
	ask("QB", "tagB")
	return f
}
