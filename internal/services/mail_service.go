package services

import (
	"fmt"
	"log"
	"net/smtp"
	"os"
	"strings"

	"myblog/internal/models"
)

// Mailer 评论服务依赖的通知出口，测试里用内存实现替换
type Mailer interface {
	SendNewCommentMail(post *models.Post)
	SendNewReplyMail(replied *models.Comment, post *models.Post)
}

type MailService struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	SiteURL  string
	OwnerTo  string // 博主收新评论提醒的邮箱
	Enabled  bool
}

func NewMailService() *MailService {
	host := os.Getenv("SMTP_HOST")
	port := os.Getenv("SMTP_PORT")
	user := os.Getenv("SMTP_USER")
	pass := os.Getenv("SMTP_PASS")
	from := os.Getenv("SMTP_FROM")

	ownerTo := os.Getenv("BLOG_EMAIL")
	if ownerTo == "" {
		ownerTo = user
	}

	siteURL := os.Getenv("SITE_URL")
	if siteURL == "" {
		siteURL = "http://localhost:8080"
	}

	enabled := host != "" && port != "" && user != "" && pass != "" && from != ""
	if !enabled {
		log.Println("⚠️ MailService disabled: Missing SMTP environment variables.")
	}

	return &MailService{
		Host:     host,
		Port:     port,
		Username: user,
		Password: pass,
		From:     from,
		SiteURL:  strings.TrimSuffix(siteURL, "/"),
		OwnerTo:  ownerTo,
		Enabled:  enabled,
	}
}

// sendAsync 异步发送，失败只记日志，绝不影响触发它的请求
func (s *MailService) sendAsync(to []string, subject string, body string) {
	if !s.Enabled {
		return
	}

	go func() {
		auth := smtp.PlainAuth("", s.Username, s.Password, s.Host)
		addr := fmt.Sprintf("%s:%s", s.Host, s.Port)

		mime := "MIME-version: 1.0;\nContent-Type: text/html; charset=\"UTF-8\";\n\n"
		msg := []byte(fmt.Sprintf("To: %s\r\n"+
			"From: MyBlog 通讯员 <%s>\r\n"+
			"Subject: %s\r\n"+
			"%s\r\n%s", strings.Join(to, ","), s.From, subject, mime, body))

		err := smtp.SendMail(addr, auth, s.From, to, msg)
		if err != nil {
			log.Printf("❌ Failed to send email to %v: %v", to, err)
		} else {
			log.Printf("✅ Email sent to %v: %s", to, subject)
		}
	}()
}

// postLink 指向文章评论区的链接
func (s *MailService) postLink(postID uint) string {
	return fmt.Sprintf("%s/post/%d#comments", s.SiteURL, postID)
}

// SendNewCommentMail 有访客发表新评论时提醒博主
func (s *MailService) SendNewCommentMail(post *models.Post) {
	if s.OwnerTo == "" {
		return
	}
	link := s.postLink(post.ID)
	body := fmt.Sprintf(`<p>New comment in post <i>%s</i>, click the link below to check:</p>
<p><a href="%s">%s</a></p>
<p><small style="color: #868e96">Do not reply this email.</small></p>`, post.Title, link, link)
	s.sendAsync([]string{s.OwnerTo}, "新的评论", body)
}

// SendNewReplyMail 评论被回复时提醒原评论人
func (s *MailService) SendNewReplyMail(replied *models.Comment, post *models.Post) {
	if replied.Email == "" {
		return
	}
	link := s.postLink(post.ID)
	body := fmt.Sprintf(`<p>New reply for the comment you left in post <i>%s</i>, click the link below to check:</p>
<p><a href="%s">%s</a></p>
<p><small style="color: #868e96">Do not reply this email.</small></p>`, post.Title, link, link)
	s.sendAsync([]string{replied.Email}, "新的回复", body)
}
