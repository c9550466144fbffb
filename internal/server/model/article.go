package model

import (
	"time"
)

// 文档审查状态
const (
	ArticleStatusPending   = "待审查"
	ArticleStatusReviewing = "审查中"
	ArticleStatusReviewed  = "已审查"
)

// 风险等级
const (
	RiskNone   = "无风险"
	RiskLow    = "低风险"
	RiskMedium = "中风险"
	RiskHigh   = "高风险"
)

// Article 上传的待审查文档
// 对应数据库表 articles
type Article struct {
	// ID 文档唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// UserID 上传者
	UserID int64 `gorm:"index;not null" json:"user_id"`

	// Name 原始文件名
	Name string `gorm:"size:255;not null" json:"name"`

	// Type 文件扩展名（.docx / .pdf）
	Type string `gorm:"size:20" json:"type"`

	// Description 用户填写的文档描述，可选
	Description string `gorm:"size:500" json:"description"`

	// Path 服务器上的存储路径，不对外暴露
	Path string `gorm:"size:500" json:"-"`

	// Content 提取出的纯文本内容
	// 审查按句子在该文本上的位置定位违规片段
	Content string `gorm:"type:longtext" json:"-"`

	// Status 审查状态: 待审查 / 审查中 / 已审查
	Status string `gorm:"size:20;default:待审查" json:"status"`

	// ReviewProgress 审查进度 0-100
	ReviewProgress int `gorm:"default:0" json:"review_progress"`

	// RiskLevel 审查完成后的风险等级
	RiskLevel string `gorm:"size:20" json:"risk_level"`

	// ReviewTime 审查完成时间
	ReviewTime *time.Time `json:"review_time,omitempty"`

	// CreatedAt 上传时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	// UpdatedAt 更新时间
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	// Sentences 文档切分出的句子（一对多关系）
	Sentences []Sentence `gorm:"foreignKey:ArticleID" json:"sentences,omitempty"`
}

// TableName 指定表名
func (Article) TableName() string {
	return "articles"
}

// Sentence 文档切分出的句子
// 对应数据库表 sentences，审查以句子为最小单位
type Sentence struct {
	// ID 句子唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// ArticleID 所属文档
	ArticleID int64 `gorm:"index;not null" json:"article_id"`

	// Content 句子文本
	Content string `gorm:"type:text;not null" json:"content"`

	// StartPos / EndPos 句子在全文中的字符位置（按 rune 计）
	StartPos int `json:"start_pos"`
	EndPos   int `json:"end_pos"`

	// Seq 句子在文档中的序号，从 0 开始
	Seq int `gorm:"index" json:"seq"`

	// HasProblem 审查是否判定为违规
	HasProblem bool `gorm:"default:false" json:"has_problem"`

	// Annotation 违规句的标注（一对一关系）
	Annotation *Annotation `gorm:"foreignKey:SentenceID" json:"annotation,omitempty"`
}

// TableName 指定表名
func (Sentence) TableName() string {
	return "sentences"
}

// Annotation 违规句的审查标注
// 对应数据库表 annotations，记录违规原因
type Annotation struct {
	// ID 标注唯一标识，自增主键
	ID int64 `gorm:"primaryKey" json:"id"`

	// SentenceID 被标注的句子
	SentenceID int64 `gorm:"uniqueIndex;not null" json:"sentence_id"`

	// Content 违规原因说明
	Content string `gorm:"type:text" json:"content"`

	// CreatedAt 标注时间
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (Annotation) TableName() string {
	return "annotations"
}
