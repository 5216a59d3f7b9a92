package services

import (
	"errors"
	"net/mail"
	"net/url"
	"unicode/utf8"

	"myblog/internal/models"
	"myblog/internal/utils"

	"gorm.io/gorm"
)

// 管理后台评论列表的过滤条件
const (
	FilterAll       = "all"
	FilterPending   = "pending"    // 待审核
	FilterFromAdmin = "from_admin" // 博主自己的评论
)

// maxReplyDepth 回复链的保护上限。新评论只会作为叶子插入，正常数据不可能
// 成环，这个上限只是防止被手工改过的数据把遍历拖进死循环。
const maxReplyDepth = 1000

// SubmitCommentInput 评论表单内容
type SubmitCommentInput struct {
	Author string `form:"author"`
	Email  string `form:"email"`
	Site   string `form:"site"`
	Body   string `form:"body"`
}

// validate 字段级校验，全部错误一次性返回给表单回显
func (in *SubmitCommentInput) validate() error {
	fields := map[string]string{}

	if in.Author == "" {
		fields["author"] = "姓名不能为空"
	} else if utf8.RuneCountInString(in.Author) > 30 {
		fields["author"] = "姓名长度不能超过30"
	}

	if in.Email == "" {
		fields["email"] = "邮箱不能为空"
	} else if utf8.RuneCountInString(in.Email) > 50 {
		fields["email"] = "邮箱长度不能超过50"
	} else if _, err := mail.ParseAddress(in.Email); err != nil {
		fields["email"] = "邮箱格式不正确"
	}

	// 站点选填，填了就必须是合法 URL
	if in.Site != "" {
		if utf8.RuneCountInString(in.Site) > 100 {
			fields["site"] = "站点长度不能超过100"
		} else if u, err := url.Parse(in.Site); err != nil || u.Host == "" ||
			(u.Scheme != "http" && u.Scheme != "https") {
			fields["site"] = "站点必须是合法的 URL"
		}
	}

	if in.Body == "" {
		fields["body"] = "内容不能为空"
	} else if utf8.RuneCountInString(in.Body) > 2000 {
		fields["body"] = "内容长度不能超过2000"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// validateBody 博主评论只检查内容字段
func (in *SubmitCommentInput) validateBody() error {
	if in.Body == "" {
		return newValidationError("body", "内容不能为空")
	}
	if utf8.RuneCountInString(in.Body) > 2000 {
		return newValidationError("body", "内容长度不能超过2000")
	}
	return nil
}

// CommentService 评论的提交、审核与级联删除
type CommentService struct {
	db         *gorm.DB
	mail       Mailer
	ownerEmail string // 管理员评论的落库邮箱，同时也是提醒邮件的收件人
}

func NewCommentService(g *gorm.DB, mailer Mailer, ownerEmail string) *CommentService {
	return &CommentService{
		db:         g,
		mail:       mailer,
		ownerEmail: ownerEmail,
	}
}

// Submit 提交评论。repliedID 不为空时作为回复挂到父评论下。
// asAdmin 为 true 时使用博主身份：作者信息取自 Admin 账号，表单里的
// 对应字段被忽略，评论直接视为已审核。
func (s *CommentService) Submit(postID uint, in SubmitCommentInput, repliedID *uint, asAdmin bool) (*models.Comment, error) {
	var post models.Post
	if err := s.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if !post.CanComment && !asAdmin {
		return nil, newValidationError("body", "博主已关闭该文章的评论")
	}

	if asAdmin {
		var admin models.Admin
		if err := s.db.First(&admin).Error; err != nil {
			return nil, err
		}
		// 博主评论的身份字段不由表单提供，只校验内容
		in.Author = admin.Name
		in.Email = s.ownerEmail
		in.Site = "/"
		if err := in.validateBody(); err != nil {
			return nil, err
		}
	} else if err := in.validate(); err != nil {
		return nil, err
	}

	body := in.Body
	if !asAdmin {
		body = utils.SanitizeComment(body)
	}

	comment := models.Comment{
		Author:    in.Author,
		Email:     in.Email,
		Site:      in.Site,
		Body:      body,
		FromAdmin: asAdmin,
		Reviewed:  asAdmin, // 博主评论无需审核
		PostID:    post.ID,
	}

	var replied *models.Comment
	if repliedID != nil {
		parent, err := s.lookupParent(&post, *repliedID)
		if err != nil {
			return nil, err
		}
		comment.RepliedID = &parent.ID
		replied = parent
	}

	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&comment).Error
	}); err != nil {
		return nil, err
	}

	// 通知走异步邮件，失败不影响本次提交
	if replied != nil {
		s.mail.SendNewReplyMail(replied, &post)
	}
	if !asAdmin {
		s.mail.SendNewCommentMail(&post)
	}

	return &comment, nil
}

// lookupParent 取出被回复的评论并检查回复链
func (s *CommentService) lookupParent(post *models.Post, repliedID uint) (*models.Comment, error) {
	var parent models.Comment
	if err := s.db.First(&parent, repliedID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if parent.PostID != post.ID {
		return nil, newValidationError("reply", "回复的评论不属于这篇文章")
	}

	// 沿父链向上走，既限制深度也检测脏数据里的环
	seen := map[uint]bool{parent.ID: true}
	cur := parent
	for cur.RepliedID != nil {
		if len(seen) >= maxReplyDepth {
			return nil, newValidationError("reply", "回复层级过深")
		}
		var next models.Comment
		if err := s.db.First(&next, *cur.RepliedID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				break
			}
			return nil, err
		}
		if seen[next.ID] {
			return nil, newValidationError("reply", "回复链存在循环")
		}
		seen[next.ID] = true
		cur = next
	}

	return &parent, nil
}

// Approve 审核通过。重复审核是幂等的空操作。
func (s *CommentService) Approve(commentID uint) error {
	var comment models.Comment
	if err := s.db.First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	if comment.Reviewed {
		return nil
	}
	return s.db.Model(&comment).Update("reviewed", true).Error
}

// SetCommentPolicy 开关某篇文章的评论，不影响已有评论
func (s *CommentService) SetCommentPolicy(postID uint, enabled bool) error {
	var post models.Post
	if err := s.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}
	return s.db.Model(&post).Update("can_comment", enabled).Error
}

// VisibleComments 读者可见的评论：仅已审核，按时间倒序
func (s *CommentService) VisibleComments(postID uint, page, perPage int) ([]models.Comment, int64, error) {
	var total int64
	if err := s.db.Model(&models.Comment{}).
		Where("post_id = ? AND reviewed = ?", postID, true).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []models.Comment
	err := s.db.Where("post_id = ? AND reviewed = ?", postID, true).
		Order("created_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&comments).Error
	return comments, total, err
}

// AdminList 管理后台评论列表，任意审核状态，按 filter 过滤
func (s *CommentService) AdminList(filter string, page, perPage int) ([]models.Comment, int64, error) {
	applyFilter := func(q *gorm.DB) *gorm.DB {
		switch filter {
		case FilterPending:
			return q.Where("reviewed = ?", false)
		case FilterFromAdmin:
			return q.Where("from_admin = ?", true)
		}
		return q
	}

	var total int64
	if err := applyFilter(s.db.Model(&models.Comment{})).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var comments []models.Comment
	err := applyFilter(s.db.Model(&models.Comment{})).
		Order("created_at DESC").
		Limit(perPage).
		Offset((page - 1) * perPage).
		Find(&comments).Error
	return comments, total, err
}

// Delete 删除评论及其全部子孙回复。sqlite/postgres 的外键级联配置
// 不一定开启，这里显式逐层收集后一次删掉。
func (s *CommentService) Delete(commentID uint) error {
	var comment models.Comment
	if err := s.db.First(&comment, commentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		ids, err := collectThread(tx, []uint{comment.ID})
		if err != nil {
			return err
		}
		return tx.Where("id IN ?", ids).Delete(&models.Comment{}).Error
	})
}

// DeletePost 删除文章并级联删除它的所有评论
func (s *CommentService) DeletePost(postID uint) error {
	var post models.Post
	if err := s.db.First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", post.ID).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		return tx.Delete(&post).Error
	})
}

// collectThread 广度优先收集 roots 及其所有子孙的 ID。
// seen 集合保证即使数据里有环也能终止。
func collectThread(tx *gorm.DB, roots []uint) ([]uint, error) {
	seen := make(map[uint]bool, len(roots))
	all := make([]uint, 0, len(roots))
	for _, id := range roots {
		seen[id] = true
		all = append(all, id)
	}

	frontier := append([]uint(nil), roots...)
	for len(frontier) > 0 {
		var children []uint
		if err := tx.Model(&models.Comment{}).
			Where("replied_id IN ?", frontier).
			Pluck("id", &children).Error; err != nil {
			return nil, err
		}

		frontier = frontier[:0]
		for _, id := range children {
			if seen[id] {
				continue
			}
			seen[id] = true
			all = append(all, id)
			frontier = append(frontier, id)
		}
	}
	return all, nil
}
