package dataset

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInspect_ReportsEveryFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.jsonl":          lunchPollLine + "\n" + lunchPollLine + "\n",
		"b.jsonl":          lunchPollLine + "\nnot json\n",
		"validation.jsonl": lunchPollLine + "\n",
		"README.md":        "# data",
	})

	reports, err := NewLoader(DirSource{Dir: dir}, dataConfig()).Inspect(context.Background())
	require.NoError(t, err)

	byName := make(map[string]FileReport, len(reports))
	for _, r := range reports {
		byName[r.Name] = r
	}
	require.Len(t, byName, 4)

	assert.True(t, byName["a.jsonl"].Training)
	assert.Equal(t, 2, byName["a.jsonl"].Examples)
	assert.NoError(t, byName["a.jsonl"].Err)

	var dfe *DataFormatError
	require.ErrorAs(t, byName["b.jsonl"].Err, &dfe, "inspection continues past a broken file")
	assert.Equal(t, 2, dfe.Line)

	assert.False(t, byName["validation.jsonl"].Training)
	assert.False(t, byName["README.md"].Training)
}
