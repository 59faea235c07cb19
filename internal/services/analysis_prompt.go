package services

import (
	"fmt"
	"strings"
	"time"

	"sajupia/internal/models/db_models"
)

const (
	DefaultProModel      = "gemini-2.5-pro"
	DefaultFreeModel     = "gemini-2.5-flash"
	DefaultFallbackModel = "gpt-4.1-mini"
	defaultAITimeout     = 90 * time.Second
)

// AIConfig selects models and bounds generation time.
type AIConfig struct {
	ProModel      string
	FreeModel     string
	FallbackModel string
	Timeout       time.Duration
}

func (c AIConfig) withDefaults() AIConfig {
	if c.ProModel == "" {
		c.ProModel = DefaultProModel
	}
	if c.FreeModel == "" {
		c.FreeModel = DefaultFreeModel
	}
	if c.FallbackModel == "" {
		c.FallbackModel = DefaultFallbackModel
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultAITimeout
	}
	return c
}

func (c AIConfig) modelForPlan(plan db_models.Plan) string {
	if plan == db_models.PlanPro {
		return c.ProModel
	}
	return c.FreeModel
}

// streamModel accepts only configured primary models.
func (c AIConfig) streamModel(requested string) string {
	switch requested {
	case c.ProModel, c.FreeModel:
		return requested
	default:
		return c.FreeModel
	}
}

var genderLabel = map[db_models.Gender]string{
	db_models.GenderMale:   "남성",
	db_models.GenderFemale: "여성",
}

func buildSajuPrompt(t *db_models.Test) string {
	birthTime := "모름"
	if t.BirthTime != nil && *t.BirthTime != "" {
		birthTime = *t.BirthTime
	}

	var b strings.Builder
	b.WriteString("당신은 20년 경력의 사주명리학 전문가입니다.\n")
	b.WriteString("아래 정보를 바탕으로 사주팔자를 분석하고 마크다운 형식으로 답변하세요.\n\n")
	fmt.Fprintf(&b, "- 이름: %s\n", t.Name)
	fmt.Fprintf(&b, "- 생년월일(양력): %s\n", t.BirthDate)
	fmt.Fprintf(&b, "- 출생시간: %s\n", birthTime)
	fmt.Fprintf(&b, "- 성별: %s\n\n", genderLabel[t.Gender])
	b.WriteString("다음 항목을 포함하세요: 천간과 지지, 오행 분석, 대운과 세운, 성격과 기질, 재물운, 건강운, 연애운.\n")
	b.WriteString("의료, 법률, 투자 판단을 단정하지 말고 긍정적인 조언으로 마무리하세요.\n")
	return b.String()
}
