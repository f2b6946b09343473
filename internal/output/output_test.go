package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_Status_PrintsHeading(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Status("top query terms:")

	assert.Equal(t, "top query terms:\n", buf.String())
}

func TestWriter_Success_PrintsCheckmark(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Success("indexed 42 chunks")

	output := buf.String()
	assert.Contains(t, output, "✅")
	assert.Contains(t, output, "indexed 42 chunks")
}

func TestWriter_Warning_PrintsWarningIcon(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Warning("degraded: embedder")

	output := buf.String()
	assert.Contains(t, output, "⚠️")
	assert.Contains(t, output, "degraded: embedder")
}

func TestWriter_Error_PrintsErrorIcon(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Error("failed to connect")

	output := buf.String()
	assert.Contains(t, output, "❌")
	assert.Contains(t, output, "failed to connect")
}

func TestWriter_Detail_IndentsLine(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Detail("answered without knowledge-base context")

	assert.Equal(t, "  answered without knowledge-base context\n", buf.String())
}

func TestWriter_Detailf_FormatsAndIndents(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Detailf("%d passages in %dms", 3, 120)

	assert.Equal(t, "  3 passages in 120ms\n", buf.String())
}

func TestWriter_Successf_FormatsMessage(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Successf("%d queries recorded", 7)

	assert.Contains(t, buf.String(), "7 queries recorded")
}

func TestWriter_Newline_PrintsEmptyLine(t *testing.T) {
	buf := &bytes.Buffer{}
	w := New(buf)

	w.Newline()

	assert.Equal(t, "\n", buf.String())
}
