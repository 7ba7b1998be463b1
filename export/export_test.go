package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/piecework/piecework/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func testTasks() []*model.Task {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []*model.Task{
		{ID: "t-1", ProcessDefinitionKey: "demo", ProcessInstanceID: "i-1", ActivityKey: "review", Name: "Review", CandidateGroups: []string{"a", "b"}, Status: model.StatusOpen, StartTime: start},
		{ID: "t-2", ProcessDefinitionKey: "demo", ProcessInstanceID: "i-1", ActivityKey: "confirm", Assignee: "alice", Status: model.StatusComplete, StartTime: start, EndTime: start.Add(time.Hour)},
	}
}

func TestCSV(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, CSV(buf, testTasks()))

	records, err := csv.NewReader(buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, Header, records[0])
	assert.Equal(t, "a,b", records[1][6])
	assert.Equal(t, "2024-05-01T12:00:00Z", records[1][8])
	assert.Equal(t, "", records[1][9])
	assert.Equal(t, "2024-05-01T13:00:00Z", records[2][9])
}

func TestXLSX(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, XLSX(buf, testTasks()))

	f, err := excelize.OpenReader(buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(SheetName)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, Header, rows[0])
	assert.Equal(t, "t-2", rows[2][0])
	assert.Equal(t, "alice", rows[2][5])
}

func TestEmpty(t *testing.T) {
	buf := new(bytes.Buffer)
	require.NoError(t, CSV(buf, nil))
	assert.Equal(t, "Task ID,Process,Instance ID,Activity,Name,Assignee,Candidate Groups,Status,Started,Ended\n", buf.String())
}
