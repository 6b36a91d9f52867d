package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRuleEnv(t *testing.T) {
	env := NewRuleEnv("Report.PDF", "")
	assert.Equal(t, "pdf", env.Ext)
	assert.Equal(t, "application/pdf", env.MimeType)

	env = NewRuleEnv("clip", "Video/MP4; codecs=avc1")
	assert.Equal(t, "", env.Ext)
	assert.Equal(t, "video/mp4", env.MimeType)
}

func TestCondition_Match(t *testing.T) {
	tests := []struct {
		condition string
		env       RuleEnv
		want      bool
	}{
		{`MimeType startsWith "image/"`, RuleEnv{MimeType: "image/png"}, true},
		{`MimeType startsWith "image/"`, RuleEnv{MimeType: "video/mp4"}, false},
		{`Ext in ["mp4", "mov"]`, RuleEnv{Ext: "mov"}, true},
		{`FileName contains "invoice"`, RuleEnv{FileName: "invoice-03.pdf"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.condition, func(t *testing.T) {
			cond, err := CompileCondition(tt.condition)
			require.NoError(t, err)

			got, err := cond.Match(tt.env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompileCondition_Invalid(t *testing.T) {
	_, err := CompileCondition(`Ext + 1`)
	assert.Error(t, err)

	_, err = CompileCondition(`Unknown == "x"`)
	assert.Error(t, err)
}

func TestCompileCondition_RejectsEmpty(t *testing.T) {
	for _, src := range []string{"", "   "} {
		cond, err := CompileCondition(src)
		assert.Error(t, err)
		assert.Nil(t, cond)
	}
}
