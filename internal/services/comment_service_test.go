package services

import (
	"errors"
	"sync"
	"testing"
	"time"

	"myblog/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// recordingMailer 替代真实 SMTP，记录每次派发
type recordingMailer struct {
	mu              sync.Mutex
	newCommentPosts []uint
	replyRecipients []string
}

func (m *recordingMailer) SendNewCommentMail(post *models.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.newCommentPosts = append(m.newCommentPosts, post.ID)
}

func (m *recordingMailer) SendNewReplyMail(replied *models.Comment, post *models.Post) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replyRecipients = append(m.replyRecipients, replied.Email)
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	g, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := g.AutoMigrate(
		&models.Admin{}, &models.Category{}, &models.Post{}, &models.Comment{}, &models.Link{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	// 清掉上一个用例共享内存库里的残留数据
	g.Where("1 = 1").Delete(&models.Comment{})
	g.Where("1 = 1").Delete(&models.Post{})
	g.Where("1 = 1").Delete(&models.Category{})
	g.Where("1 = 1").Delete(&models.Admin{})

	admin := models.Admin{Username: "admin", PasswordHash: "x", Name: "博主", BlogTitle: "MyBlog"}
	if err := g.Create(&admin).Error; err != nil {
		t.Fatalf("seed admin: %v", err)
	}
	category := models.Category{ID: models.DefaultCategoryID, Name: "默认"}
	if err := g.Create(&category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	return g
}

func newTestService(t *testing.T) (*CommentService, *recordingMailer, *gorm.DB) {
	t.Helper()
	g := setupTestDB(t)
	mailer := &recordingMailer{}
	return NewCommentService(g, mailer, "owner@example.com"), mailer, g
}

func createPost(t *testing.T, g *gorm.DB, canComment bool) *models.Post {
	t.Helper()
	post := models.Post{Title: "测试文章", Body: "正文", CanComment: canComment, CategoryID: models.DefaultCategoryID}
	if err := g.Create(&post).Error; err != nil {
		t.Fatalf("create post: %v", err)
	}
	return &post
}

func validInput() SubmitCommentInput {
	return SubmitCommentInput{
		Author: "Ann",
		Email:  "ann@x.com",
		Body:   "Nice post",
	}
}

func TestSubmitAnonymous(t *testing.T) {
	svc, mailer, g := newTestService(t)
	post := createPost(t, g, true)

	comment, err := svc.Submit(post.ID, validInput(), nil, false)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if comment.Reviewed {
		t.Error("anonymous comment should start unreviewed")
	}
	if comment.FromAdmin {
		t.Error("anonymous comment should not be from_admin")
	}

	// 博主收到新评论提醒
	if len(mailer.newCommentPosts) != 1 || mailer.newCommentPosts[0] != post.ID {
		t.Errorf("expected one owner notification for post %d, got %v", post.ID, mailer.newCommentPosts)
	}

	// 未审核的评论对读者不可见
	visible, total, err := svc.VisibleComments(post.ID, 1, 10)
	if err != nil {
		t.Fatalf("VisibleComments failed: %v", err)
	}
	if len(visible) != 0 || total != 0 {
		t.Errorf("unreviewed comment should be hidden, got %d comments", len(visible))
	}
}

func TestSubmitAdmin(t *testing.T) {
	svc, mailer, g := newTestService(t)
	post := createPost(t, g, true)

	// 表单里伪造的身份字段必须被忽略
	in := SubmitCommentInput{Author: "attacker", Email: "evil@x.com", Site: "http://evil.example", Body: "回复一下"}
	comment, err := svc.Submit(post.ID, in, nil, true)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !comment.Reviewed || !comment.FromAdmin {
		t.Error("admin comment should be reviewed and flagged from_admin at creation")
	}
	if comment.Author != "博主" {
		t.Errorf("admin comment author = %q, want admin profile name", comment.Author)
	}
	if comment.Email != "owner@example.com" {
		t.Errorf("admin comment email = %q, want owner mailbox", comment.Email)
	}

	if len(mailer.newCommentPosts) != 0 {
		t.Error("admin submission should not notify the owner")
	}
}

func TestSubmitValidation(t *testing.T) {
	svc, _, g := newTestService(t)
	post := createPost(t, g, true)

	cases := []struct {
		name  string
		in    SubmitCommentInput
		field string
	}{
		{"missing author", SubmitCommentInput{Email: "a@b.com", Body: "hi"}, "author"},
		{"missing body", SubmitCommentInput{Author: "a", Email: "a@b.com"}, "body"},
		{"bad email", SubmitCommentInput{Author: "a", Email: "not-an-email", Body: "hi"}, "email"},
		{"bad site", SubmitCommentInput{Author: "a", Email: "a@b.com", Site: "notaurl", Body: "hi"}, "site"},
	}
	for _, tc := range cases {
		_, err := svc.Submit(post.ID, tc.in, nil, false)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Errorf("%s: expected ValidationError, got %v", tc.name, err)
			continue
		}
		if _, ok := ve.Fields[tc.field]; !ok {
			t.Errorf("%s: expected error on field %q, got %v", tc.name, tc.field, ve.Fields)
		}
	}
}

func TestSubmitCommentsDisabled(t *testing.T) {
	svc, _, g := newTestService(t)
	post := createPost(t, g, false)

	_, err := svc.Submit(post.ID, validInput(), nil, false)
	if !IsValidation(err) {
		t.Errorf("anonymous submission to locked post: expected ValidationError, got %v", err)
	}

	// 博主不受评论开关限制
	if _, err := svc.Submit(post.ID, SubmitCommentInput{Body: "博主的评论"}, nil, true); err != nil {
		t.Errorf("admin submission to locked post should succeed, got %v", err)
	}
}

func TestSubmitNotFound(t *testing.T) {
	svc, _, g := newTestService(t)
	post := createPost(t, g, true)

	if _, err := svc.Submit(9999, validInput(), nil, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing post: expected ErrNotFound, got %v", err)
	}

	missing := uint(9999)
	if _, err := svc.Submit(post.ID, validInput(), &missing, false); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing parent: expected ErrNotFound, got %v", err)
	}
}

func TestReplyFlow(t *testing.T) {
	svc, mailer, g := newTestService(t)
	post := createPost(t, g, true)

	ann, err := svc.Submit(post.ID, validInput(), nil, false)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := svc.Approve(ann.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	in := SubmitCommentInput{Author: "Bob", Email: "bob@x.com", Body: "同意"}
	reply, err := svc.Submit(post.ID, in, &ann.ID, false)
	if err != nil {
		t.Fatalf("Submit reply failed: %v", err)
	}
	if reply.RepliedID == nil || *reply.RepliedID != ann.ID {
		t.Errorf("reply parent = %v, want %d", reply.RepliedID, ann.ID)
	}

	// 回复提醒发给被回复人存的邮箱
	if len(mailer.replyRecipients) != 1 || mailer.replyRecipients[0] != "ann@x.com" {
		t.Errorf("reply notification recipients = %v, want [ann@x.com]", mailer.replyRecipients)
	}
}

func TestReplyToOtherPost(t *testing.T) {
	svc, _, g := newTestService(t)
	postA := createPost(t, g, true)
	postB := createPost(t, g, true)

	ann, err := svc.Submit(postA.ID, validInput(), nil, false)
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	if _, err := svc.Submit(postB.ID, validInput(), &ann.ID, false); !IsValidation(err) {
		t.Errorf("cross-post reply: expected ValidationError, got %v", err)
	}
}

func TestReplyCycleGuard(t *testing.T) {
	svc, _, g := newTestService(t)
	post := createPost(t, g, true)

	c1, _ := svc.Submit(post.ID, validInput(), nil, false)
	c2, _ := svc.Submit(post.ID, validInput(), &c1.ID, false)

	// 手工把数据改坏：c1 反过来指向 c2，形成环
	if err := g.Model(&models.Comment{}).Where("id = ?", c1.ID).Update("replied_id", c2.ID).Error; err != nil {
		t.Fatalf("corrupt data: %v", err)
	}
	if _, err := svc.Submit(post.ID, validInput(), &c2.ID, false); !IsValidation(err) {
		t.Errorf("cycle in reply chain: expected ValidationError, got %v", err)
	}

	// 自引用同样拒绝
	c3, _ := svc.Submit(post.ID, validInput(), nil, false)
	if err := g.Model(&models.Comment{}).Where("id = ?", c3.ID).Update("replied_id", c3.ID).Error; err != nil {
		t.Fatalf("corrupt data: %v", err)
	}
	if _, err := svc.Submit(post.ID, validInput(), &c3.ID, false); !IsValidation(err) {
		t.Errorf("self-parent reply: expected ValidationError, got %v", err)
	}
}

func TestApproveIdempotent(t *testing.T) {
	svc, _, g := newTestService(t)
	post := createPost(t, g, true)

	comment, _ := svc.Submit(post.ID, validInput(), nil, false)

	if err := svc.Approve(comment.ID); err != nil {
		t.Fatalf("first approve: %v", err)
	}
	if err := svc.Approve(comment.ID); err != nil {
		t.Fatalf("second approve should be a no-op, got %v", err)
	}

	var got models.Comment
	g.First(&got, comment.ID)
	if !got.Reviewed {
		t.Error("comment should stay approved")
	}

	if err := svc.Approve(9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("approve missing: expected ErrNotFound, got %v", err)
	}
}

func TestVisibleCommentsOrdering(t *testing.T) {
	svc, _, g := newTestService(t)
	post := createPost(t, g, true)

	older, _ := svc.Submit(post.ID, validInput(), nil, false)
	newer, _ := svc.Submit(post.ID, SubmitCommentInput{Author: "Bob", Email: "bob@x.com", Body: "later"}, nil, false)

	base := time.Now().Add(-time.Hour)
	g.Model(&models.Comment{}).Where("id = ?", older.ID).Update("created_at", base)
	g.Model(&models.Comment{}).Where("id = ?", newer.ID).Update("created_at", base.Add(time.Minute))

	svc.Approve(older.ID)
	svc.Approve(newer.ID)

	visible, total, err := svc.VisibleComments(post.ID, 1, 10)
	if err != nil {
		t.Fatalf("VisibleComments failed: %v", err)
	}
	if total != 2 || len(visible) != 2 {
		t.Fatalf("expected 2 visible comments, got %d (total %d)", len(visible), total)
	}
	// 最新的排最前
	if visible[0].ID != newer.ID || visible[1].ID != older.ID {
		t.Errorf("visible order = [%d %d], want [%d %d]", visible[0].ID, visible[1].ID, newer.ID, older.ID)
	}
}

func TestAdminListFilters(t *testing.T) {
	svc, _, g := newTestService(t)
	post := createPost(t, g, true)

	pending, _ := svc.Submit(post.ID, validInput(), nil, false)
	approved, _ := svc.Submit(post.ID, SubmitCommentInput{Author: "Bob", Email: "bob@x.com", Body: "b"}, nil, false)
	svc.Approve(approved.ID)
	fromAdmin, _ := svc.Submit(post.ID, SubmitCommentInput{Body: "博主回复"}, nil, true)

	all, total, _ := svc.AdminList(FilterAll, 1, 10)
	if total != 3 || len(all) != 3 {
		t.Errorf("all filter: got %d (total %d), want 3", len(all), total)
	}

	pendingList, _, _ := svc.AdminList(FilterPending, 1, 10)
	if len(pendingList) != 1 || pendingList[0].ID != pending.ID {
		t.Errorf("pending filter should return exactly the unreviewed comment")
	}

	adminList, _, _ := svc.AdminList(FilterFromAdmin, 1, 10)
	if len(adminList) != 1 || adminList[0].ID != fromAdmin.ID {
		t.Errorf("from_admin filter should return exactly the admin comment")
	}
}

func TestDeleteCascade(t *testing.T) {
	svc, _, g := newTestService(t)
	post := createPost(t, g, true)

	// c1 ← c2 ← c3 的回复链，外加一个不相关的 sibling
	c1, _ := svc.Submit(post.ID, validInput(), nil, false)
	c2, _ := svc.Submit(post.ID, SubmitCommentInput{Author: "B", Email: "b@x.com", Body: "b"}, &c1.ID, false)
	c3, _ := svc.Submit(post.ID, SubmitCommentInput{Author: "C", Email: "c@x.com", Body: "c"}, &c2.ID, false)
	sibling, _ := svc.Submit(post.ID, SubmitCommentInput{Author: "D", Email: "d@x.com", Body: "d"}, nil, false)

	if err := svc.Delete(c1.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	var count int64
	g.Model(&models.Comment{}).Where("id IN ?", []uint{c1.ID, c2.ID, c3.ID}).Count(&count)
	if count != 0 {
		t.Errorf("expected thread fully deleted, %d rows remain", count)
	}
	g.Model(&models.Comment{}).Where("id = ?", sibling.ID).Count(&count)
	if count != 1 {
		t.Error("unrelated comment should survive")
	}

	if err := svc.Delete(9999); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete missing: expected ErrNotFound, got %v", err)
	}
}

func TestDeletePostCascade(t *testing.T) {
	svc, _, g := newTestService(t)
	post := createPost(t, g, true)
	other := createPost(t, g, true)

	c1, _ := svc.Submit(post.ID, validInput(), nil, false)
	svc.Submit(post.ID, SubmitCommentInput{Author: "B", Email: "b@x.com", Body: "b"}, &c1.ID, false)
	keep, _ := svc.Submit(other.ID, validInput(), nil, false)

	if err := svc.DeletePost(post.ID); err != nil {
		t.Fatalf("DeletePost failed: %v", err)
	}

	var count int64
	g.Model(&models.Post{}).Where("id = ?", post.ID).Count(&count)
	if count != 0 {
		t.Error("post should be gone")
	}
	g.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&count)
	if count != 0 {
		t.Error("post comments should be gone")
	}
	g.Model(&models.Comment{}).Where("id = ?", keep.ID).Count(&count)
	if count != 1 {
		t.Error("comments of other posts should survive")
	}
}

func TestSetCommentPolicy(t *testing.T) {
	svc, _, g := newTestService(t)
	post := createPost(t, g, true)

	// 关闭前的评论留着
	existing, _ := svc.Submit(post.ID, validInput(), nil, false)
	svc.Approve(existing.ID)

	if err := svc.SetCommentPolicy(post.ID, false); err != nil {
		t.Fatalf("SetCommentPolicy failed: %v", err)
	}

	var got models.Post
	g.First(&got, post.ID)
	if got.CanComment {
		t.Error("can_comment should be false")
	}

	visible, _, _ := svc.VisibleComments(post.ID, 1, 10)
	if len(visible) != 1 {
		t.Error("existing comments should stay visible after disabling comments")
	}

	if err := svc.SetCommentPolicy(post.ID, true); err != nil {
		t.Fatalf("re-enable failed: %v", err)
	}
	g.First(&got, post.ID)
	if !got.CanComment {
		t.Error("can_comment should be true again")
	}

	if err := svc.SetCommentPolicy(9999, true); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing post: expected ErrNotFound, got %v", err)
	}
}
