package ai

import (
	"context"
	"strings"
)

// violationKeywords 典型的公平竞争违规表述及对应的标注
// 顺序即匹配优先级，命中第一条即返回
var violationKeywords = []struct {
	keyword    string
	annotation string
}{
	{"本地企业", "限定本地企业参与，排斥外地经营者，违反公平竞争要求"},
	{"本地供应商", "限定本地供应商，排斥外地经营者，违反公平竞争要求"},
	{"本市企业", "限定本市企业参与，构成地域限制"},
	{"本省企业", "限定本省企业参与，构成地域限制"},
	{"指定供应商", "指定特定供应商，排斥其他经营者的公平竞争机会"},
	{"指定品牌", "指定特定品牌，限制了其他品牌的公平竞争"},
	{"注册资本不低于", "设置注册资本门槛，可能构成歧视性准入条件"},
	{"外地企业不得", "明确排斥外地企业，违反公平竞争要求"},
	{"排斥外地", "排斥外地经营者，违反公平竞争要求"},
	{"财政补贴仅限", "补贴政策限定受益对象，构成差别待遇"},
	{"税收优惠仅限", "税收优惠限定受益对象，构成差别待遇"},
}

// KeywordClassifier 基于关键词的兜底分类器
// 没有配置模型 API Key 时使用，也可作为模型故障时的降级路径
type KeywordClassifier struct{}

// NewKeywordClassifier 创建关键词分类器
func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// ClassifySentence 按关键词判定句子是否违规
func (c *KeywordClassifier) ClassifySentence(ctx context.Context, sentence string) (Verdict, error) {
	for _, item := range violationKeywords {
		if strings.Contains(sentence, item.keyword) {
			return Verdict{HasProblem: true, Annotation: item.annotation}, nil
		}
	}
	return Verdict{}, nil
}

// FallbackClassifier 先走主分类器，失败时降级到备用分类器
type FallbackClassifier struct {
	primary  Classifier
	fallback Classifier
}

// NewFallbackClassifier 组合主备分类器
func NewFallbackClassifier(primary, fallback Classifier) *FallbackClassifier {
	return &FallbackClassifier{primary: primary, fallback: fallback}
}

// ClassifySentence 优先使用主分类器，出错时用备用分类器兜底
func (c *FallbackClassifier) ClassifySentence(ctx context.Context, sentence string) (Verdict, error) {
	verdict, err := c.primary.ClassifySentence(ctx, sentence)
	if err == nil {
		return verdict, nil
	}
	return c.fallback.ClassifySentence(ctx, sentence)
}
