package ai

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeywordClassifier(t *testing.T) {
	c := NewKeywordClassifier()

	verdict, err := c.ClassifySentence(context.Background(), "政府采购项目仅允许本地企业投标。")
	require.NoError(t, err)
	assert.True(t, verdict.HasProblem)
	assert.NotEmpty(t, verdict.Annotation)

	verdict, err = c.ClassifySentence(context.Background(), "各类经营主体均可平等参与本项目竞标。")
	require.NoError(t, err)
	assert.False(t, verdict.HasProblem)
	assert.Empty(t, verdict.Annotation)
}

type erroringClassifier struct{}

func (erroringClassifier) ClassifySentence(ctx context.Context, sentence string) (Verdict, error) {
	return Verdict{}, errors.New("模型不可用")
}

func TestFallbackClassifier(t *testing.T) {
	c := NewFallbackClassifier(erroringClassifier{}, NewKeywordClassifier())

	verdict, err := c.ClassifySentence(context.Background(), "本次招标指定供应商为甲公司。")
	require.NoError(t, err)
	assert.True(t, verdict.HasProblem)
}
