package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ilkoid/goose-tune/pkg/config"
	"github.com/ilkoid/goose-tune/pkg/prompt"
	"github.com/ilkoid/goose-tune/pkg/s3storage"
)

const lunchPollLine = `{"prompt":"create a poll about lunch","output":{"elements":[{"type":"poll-element","instanceId":"p1","config":{"question":"Lunch?","options":["Pizza","Sushi"]},"position":{"x":0,"y":0},"size":{"width":4,"height":2}}],"connections":[],"name":"Lunch Poll","description":"A poll","layout":"grid"}}`

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
	}
	return dir
}

func dataConfig() config.DataConfig {
	return config.Default().Data
}

func load(t *testing.T, dir string) ([]TrainingExample, error) {
	t.Helper()
	return NewLoader(DirSource{Dir: dir}, dataConfig()).Load(context.Background())
}

func TestIsTrainingFile(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"a.jsonl", true},
		{"a_validation.jsonl", false},
		{"validation.jsonl", false},
		{"notes.txt", false},
		{"a.jsonl.bak", false},
		{"prefix/run_validation/train.jsonl", true},
		{"prefix/train.jsonl", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTrainingFile(tt.name, ".jsonl", "validation"))
		})
	}
}

func TestLoad_EndToEndPoll(t *testing.T) {
	dir := writeFiles(t, map[string]string{"train.jsonl": lunchPollLine + "\n"})

	examples, err := load(t, dir)
	require.NoError(t, err)
	require.Len(t, examples, 1)
	assert.Equal(t, "create a poll about lunch", examples[0].Prompt)
	assert.Equal(t, "train.jsonl", examples[0].File)
	assert.Equal(t, 1, examples[0].Line)

	formatted, err := Format(prompt.DefaultSystemPrompt, examples)
	require.NoError(t, err)
	require.Len(t, formatted, 1)

	text := formatted[0].Text
	assistant := text[strings.Index(text, prompt.MarkerAssistant):]
	assert.Contains(t, assistant, `"type":"poll-element"`)
	assert.True(t, strings.HasSuffix(text, "\n"+prompt.MarkerEnd))
	assert.True(t, strings.HasPrefix(text, prompt.MarkerSystem+"\n"))
}

func TestLoad_ExcludesValidationSplit(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"a.jsonl":            `{"prompt":"from a","output":{}}` + "\n",
		"a_validation.jsonl": `{"prompt":"from validation","output":{}}` + "\n",
		"readme.md":          "not data",
	})

	examples, err := load(t, dir)
	require.NoError(t, err)
	require.Len(t, examples, 1)
	assert.Equal(t, "from a", examples[0].Prompt)
}

func TestLoad_EmptyDirectory(t *testing.T) {
	examples, err := load(t, t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, examples)
}

func TestDirSource_ListFollowsFileSymlinks(t *testing.T) {
	outside := writeFiles(t, map[string]string{"shared.jsonl": `{"prompt":"via link","output":{}}` + "\n"})
	dir := t.TempDir()
	require.NoError(t, os.Symlink(filepath.Join(outside, "shared.jsonl"), filepath.Join(dir, "linked.jsonl")))
	require.NoError(t, os.Symlink(filepath.Join(outside, "gone.jsonl"), filepath.Join(dir, "dangling.jsonl")))
	require.NoError(t, os.Symlink(outside, filepath.Join(dir, "subdir.jsonl")))

	names, err := DirSource{Dir: dir}.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"linked.jsonl"}, names)

	examples, err := load(t, dir)
	require.NoError(t, err)
	require.Len(t, examples, 1)
	assert.Equal(t, "via link", examples[0].Prompt)
}

func TestLoad_MissingDirectory(t *testing.T) {
	_, err := load(t, filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)

	var dfe *DataFormatError
	assert.False(t, errors.As(err, &dfe), "unreadable dir is not a data format error")
}

func TestLoad_SkipsBlankLinesAndKeepsLineOrder(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"train.jsonl": "\n" + `{"prompt":"one","output":{}}` + "\n   \n" + `{"prompt":"two","output":{}}` + "\n",
	})

	examples, err := load(t, dir)
	require.NoError(t, err)
	require.Len(t, examples, 2)
	assert.Equal(t, "one", examples[0].Prompt)
	assert.Equal(t, 2, examples[0].Line)
	assert.Equal(t, "two", examples[1].Prompt)
	assert.Equal(t, 4, examples[1].Line)
}

func TestLoad_MalformedLineFailsWholeLoad(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"good.jsonl": `{"prompt":"ok","output":{}}` + "\n",
		"bad.jsonl":  `{"prompt":"ok","output":{}}` + "\n" + `{"prompt": "broken",` + "\n",
	})

	examples, err := load(t, dir)
	require.Error(t, err)
	assert.Nil(t, examples)

	var dfe *DataFormatError
	require.ErrorAs(t, err, &dfe)
	assert.Equal(t, "bad.jsonl", dfe.File)
	assert.Equal(t, 2, dfe.Line)
	assert.ErrorIs(t, err, ErrMalformedJSON)
	assert.Contains(t, err.Error(), "bad.jsonl:2")
}

func TestParseLine_Errors(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		field   string
		wantErr error
	}{
		{"not json", `{nope`, "", ErrMalformedJSON},
		{"array record", `[1,2]`, "", ErrMalformedJSON},
		{"missing prompt", `{"output":{}}`, "prompt", ErrMissingField},
		{"null prompt", `{"prompt":null,"output":{}}`, "prompt", ErrMissingField},
		{"numeric prompt", `{"prompt":7,"output":{}}`, "prompt", ErrInvalidField},
		{"missing output", `{"prompt":"p"}`, "output", ErrMissingField},
		{"null output", `{"prompt":"p","output":null}`, "output", ErrMissingField},
		{"string output", `{"prompt":"p","output":"{}"}`, "output", ErrInvalidOutput},
		{"array output", `{"prompt":"p","output":[]}`, "output", ErrInvalidOutput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseLine([]byte(tt.line))
			var dfe *DataFormatError
			require.ErrorAs(t, err, &dfe)
			assert.Equal(t, tt.field, dfe.Field)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, errors.Is(tt.wantErr, ErrMissingField), IsMissingField(err))
		})
	}
}

func TestLoad_LineTooLong(t *testing.T) {
	cfg := dataConfig()
	cfg.MaxLineBytes = 32
	dir := writeFiles(t, map[string]string{
		"train.jsonl": `{"prompt":"` + strings.Repeat("x", 100) + `","output":{}}` + "\n",
	})

	_, err := NewLoader(DirSource{Dir: dir}, cfg).Load(context.Background())
	var dfe *DataFormatError
	require.ErrorAs(t, err, &dfe)
	assert.Equal(t, 1, dfe.Line)
}

func TestCanonical(t *testing.T) {
	got, err := Canonical(json.RawMessage("{ \"name\" : \"Lunch\",\n  \"elements\": [ 1, 2 ] }"))
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Lunch","elements":[1,2]}`, got)

	again, err := Canonical(json.RawMessage(got))
	require.NoError(t, err)
	assert.Equal(t, got, again, "canonical form is a fixed point")
}

func TestCanonical_SingleSpelling(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "raw non-ascii", raw: `{"name":"Café"}`, want: `{"name":"Caf\u00e9"}`},
		{name: "escaped non-ascii", raw: `{"name":"Caf\u00e9"}`, want: `{"name":"Caf\u00e9"}`},
		{name: "upper-case escape", raw: `{"name":"Caf\u00E9"}`, want: `{"name":"Caf\u00e9"}`},
		{name: "emoji as surrogate pair", raw: `{"icon":"🪿"}`, want: `{"icon":"\ud83e\udebf"}`},
		{name: "control and quote", raw: `{"s":"a\"b\\c\n\u0001/"}`, want: `{"s":"a\"b\\c\n\u0001/"}`},
		{name: "duplicate key keeps last value", raw: `{"x":1e2,"y":0,"x":3}`, want: `{"x":3,"y":0}`},
		{name: "exponent becomes float", raw: `{"x":1e2}`, want: `{"x":100.0}`},
		{name: "float spellings agree", raw: `[1.50,15e-1,0.15E1]`, want: `[1.5,1.5,1.5]`},
		{name: "small float", raw: `[0.0001,0.00001]`, want: `[0.0001,1e-05]`},
		{name: "large float", raw: `[1e15,1e16,1.5e300]`, want: `[1000000000000000.0,1e+16,1.5e+300]`},
		{name: "integers kept", raw: `[0,-0,12345678901234567890,-7]`, want: `[0,0,12345678901234567890,-7]`},
		{name: "nested", raw: `{"a":{"b":[true,false,null,{}],"c":[]}}`, want: `{"a":{"b":[true,false,null,{}],"c":[]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Canonical(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCanonical_EqualValuesSameText(t *testing.T) {
	a, err := Canonical(json.RawMessage(`{"name":"Caf\u00e9","size":2.0}`))
	require.NoError(t, err)
	b, err := Canonical(json.RawMessage(`{ "name": "Café", "size": 20e-1 }`))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCanonical_Malformed(t *testing.T) {
	for _, raw := range []string{`{"a":`, `{"a":1} {"b":2}`, `[1,]`} {
		_, err := Canonical(json.RawMessage(raw))
		assert.ErrorIs(t, err, ErrMalformedJSON, raw)
	}
}

func TestFormat_Deterministic(t *testing.T) {
	ex, err := ParseLine([]byte(lunchPollLine))
	require.NoError(t, err)

	a, err := FormatOne("SYS", ex)
	require.NoError(t, err)
	b, err := FormatOne("SYS", ex)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestWriteJSONL(t *testing.T) {
	var buf bytes.Buffer
	err := WriteJSONL(&buf, []FormattedExample{
		{Text: prompt.Render("S", "u", `{"a":1}`)},
		{Text: "second"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "<|assistant|>", "markers are not html-escaped")

	var decoded FormattedExample
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &decoded))
	assert.Equal(t, prompt.Render("S", "u", `{"a":1}`), decoded.Text)
}

type fakeS3 struct {
	objects map[string][]byte
	listErr error
}

func (f *fakeS3) ListFiles(_ context.Context, prefix string) ([]s3storage.StoredObject, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []s3storage.StoredObject
	for k, v := range f.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, s3storage.StoredObject{Key: k, Size: int64(len(v))})
		}
	}
	return out, nil
}

func (f *fakeS3) DownloadFile(_ context.Context, key string) ([]byte, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no such key %s", key)
	}
	return data, nil
}

func TestS3Source_Load(t *testing.T) {
	client := &fakeS3{objects: map[string][]byte{
		"goose/train.jsonl":            []byte(lunchPollLine + "\n"),
		"goose/train_validation.jsonl": []byte(`{"prompt":"v","output":{}}`),
		"other/train.jsonl":            []byte(`{"prompt":"elsewhere","output":{}}`),
	}}

	src := S3Source{Client: client, Prefix: "goose"}
	assert.Equal(t, "s3://goose", src.String())

	examples, err := NewLoader(src, dataConfig()).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, examples, 1)
	assert.Equal(t, "goose/train.jsonl", examples[0].File)
}

func TestS3Source_ListError(t *testing.T) {
	src := S3Source{Client: &fakeS3{listErr: errors.New("boom")}}
	_, err := NewLoader(src, dataConfig()).Load(context.Background())
	assert.EqualError(t, err, "boom")
}

func TestParseS3Prefix(t *testing.T) {
	p, ok := ParseS3Prefix("s3://datasets/goose/")
	assert.True(t, ok)
	assert.Equal(t, "datasets/goose", p)

	_, ok = ParseS3Prefix("./training/data")
	assert.False(t, ok)
}
