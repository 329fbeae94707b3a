package caddy

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpsertBlock_EmptyFile(t *testing.T) {
	got := upsertBlock("", "notion.alive.example", 3333)

	assert.Equal(t, "notion.alive.example {\n\treverse_proxy localhost:3333\n}\n", got)
}

func TestUpsertBlock_AppendsAfterExistingBlocks(t *testing.T) {
	content := "blog.alive.example {\n\treverse_proxy localhost:3334\n}\n"

	got := upsertBlock(content, "notion.alive.example", 3333)

	expected := "blog.alive.example {\n" +
		"\treverse_proxy localhost:3334\n" +
		"}\n" +
		"\n" +
		"notion.alive.example {\n" +
		"\treverse_proxy localhost:3333\n" +
		"}\n"
	assert.Equal(t, expected, got)
}

func TestUpsertBlock_UpdatesPortInPlace(t *testing.T) {
	content := "notion.alive.example {\n\treverse_proxy localhost:3333\n}\n"

	got := upsertBlock(content, "notion.alive.example", 3999)

	assert.Equal(t, "notion.alive.example {\n\treverse_proxy localhost:3999\n}\n", got)
}

func TestUpsertBlock_Idempotent(t *testing.T) {
	content := upsertBlock("", "notion.alive.example", 3333)

	assert.Equal(t, content, upsertBlock(content, "notion.alive.example", 3333))
}

func TestUpsertBlock_PreservesOperatorDirectives(t *testing.T) {
	content := "notion.alive.example {\n" +
		"\tencode gzip\n" +
		"\treverse_proxy localhost:3333\n" +
		"\theader X-Frame-Options DENY\n" +
		"}\n"

	got := upsertBlock(content, "notion.alive.example", 3500)

	assert.Contains(t, got, "encode gzip")
	assert.Contains(t, got, "header X-Frame-Options DENY")
	assert.Contains(t, got, "reverse_proxy localhost:3500")
	assert.NotContains(t, got, "localhost:3333")
}

func TestUpsertBlock_DoesNotTouchOtherBlocks(t *testing.T) {
	content := "blog.alive.example {\n" +
		"\treverse_proxy localhost:3334\n" +
		"}\n" +
		"\n" +
		"notion.alive.example {\n" +
		"\treverse_proxy localhost:3333\n" +
		"}\n"

	got := upsertBlock(content, "notion.alive.example", 3999)

	assert.Contains(t, got, "blog.alive.example {\n\treverse_proxy localhost:3334\n}")
	assert.Contains(t, got, "notion.alive.example {\n\treverse_proxy localhost:3999\n}")
}

func TestUpsertBlock_ExactHeadingMatchOnly(t *testing.T) {
	// A suffix-sharing domain must not be mistaken for the target.
	content := "app.notion.alive.example {\n\treverse_proxy localhost:3400\n}\n"

	got := upsertBlock(content, "notion.alive.example", 3333)

	assert.Contains(t, got, "app.notion.alive.example {\n\treverse_proxy localhost:3400\n}")
	assert.Contains(t, got, "notion.alive.example {\n\treverse_proxy localhost:3333\n}")
}

func TestUpsertBlock_ReplacesOneLineBlock(t *testing.T) {
	content := "notion.alive.example { reverse_proxy localhost:3333 }\n"

	got := upsertBlock(content, "notion.alive.example", 3999)

	assert.Equal(t, "notion.alive.example {\n\treverse_proxy localhost:3999\n}\n", got)
}

func TestUpsertBlock_AddsMissingProxyDirective(t *testing.T) {
	content := "notion.alive.example {\n\tencode gzip\n}\n"

	got := upsertBlock(content, "notion.alive.example", 3333)

	assert.Equal(t, "notion.alive.example {\n\tencode gzip\n\treverse_proxy localhost:3333\n}\n", got)
}

func TestUpsertBlock_IgnoresNestedBraces(t *testing.T) {
	content := "blog.alive.example {\n" +
		"\thandle /api/* {\n" +
		"\t\treverse_proxy localhost:9000\n" +
		"\t}\n" +
		"\treverse_proxy localhost:3334\n" +
		"}\n"

	got := upsertBlock(content, "notion.alive.example", 3333)

	// The nested handle block must not terminate the outer block early.
	assert.Contains(t, got, "notion.alive.example {\n\treverse_proxy localhost:3333\n}")
	assert.Contains(t, got, "reverse_proxy localhost:9000")
	assert.Contains(t, got, "reverse_proxy localhost:3334")
}

func TestRemoveBlock_RemovesTargetOnly(t *testing.T) {
	content := "blog.alive.example {\n" +
		"\treverse_proxy localhost:3334\n" +
		"}\n" +
		"\n" +
		"notion.alive.example {\n" +
		"\treverse_proxy localhost:3333\n" +
		"}\n"

	got, removed := removeBlock(content, "notion.alive.example")

	assert.True(t, removed)
	assert.Equal(t, "blog.alive.example {\n\treverse_proxy localhost:3334\n}\n", got)
}

func TestRemoveBlock_FirstBlock(t *testing.T) {
	content := "notion.alive.example {\n" +
		"\treverse_proxy localhost:3333\n" +
		"}\n" +
		"\n" +
		"blog.alive.example {\n" +
		"\treverse_proxy localhost:3334\n" +
		"}\n"

	got, removed := removeBlock(content, "notion.alive.example")

	assert.True(t, removed)
	assert.Equal(t, "blog.alive.example {\n\treverse_proxy localhost:3334\n}\n", got)
}

func TestRemoveBlock_LastRemainingBlock(t *testing.T) {
	content := "notion.alive.example {\n\treverse_proxy localhost:3333\n}\n"

	got, removed := removeBlock(content, "notion.alive.example")

	assert.True(t, removed)
	assert.Equal(t, "", got)
}

func TestRemoveBlock_AbsentDomain(t *testing.T) {
	content := "blog.alive.example {\n\treverse_proxy localhost:3334\n}\n"

	got, removed := removeBlock(content, "notion.alive.example")

	assert.False(t, removed)
	assert.Equal(t, content, got)
}

func TestRemoveBlock_MiddleBlockLeavesSingleSeparator(t *testing.T) {
	content := "a.alive.example {\n\treverse_proxy localhost:3333\n}\n" +
		"\n" +
		"b.alive.example {\n\treverse_proxy localhost:3334\n}\n" +
		"\n" +
		"c.alive.example {\n\treverse_proxy localhost:3335\n}\n"

	got, removed := removeBlock(content, "b.alive.example")

	assert.True(t, removed)
	assert.NotContains(t, got, "b.alive.example")
	assert.NotContains(t, got, "\n\n\n")
	assert.Contains(t, got, "a.alive.example")
	assert.Contains(t, got, "c.alive.example")
}

func TestRemoveThenUpsert_RoundTrips(t *testing.T) {
	content := upsertBlock("", "notion.alive.example", 3333)
	content = upsertBlock(content, "blog.alive.example", 3334)

	content, removed := removeBlock(content, "notion.alive.example")
	require.True(t, removed)
	content = upsertBlock(content, "notion.alive.example", 3335)

	assert.Equal(t, 3335, blockPort(content, "notion.alive.example"))
	assert.Equal(t, 3334, blockPort(content, "blog.alive.example"))
	assert.Equal(t, 1, strings.Count(content, "notion.alive.example"))
}

func TestBlockPort(t *testing.T) {
	content := "notion.alive.example {\n\treverse_proxy localhost:3333\n}\n" +
		"\n" +
		"compact.alive.example { reverse_proxy localhost:3400 }\n"

	assert.Equal(t, 3333, blockPort(content, "notion.alive.example"))
	assert.Equal(t, 3400, blockPort(content, "compact.alive.example"))
	assert.Equal(t, 0, blockPort(content, "missing.alive.example"))
}
