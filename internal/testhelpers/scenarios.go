package testhelpers

import (
	"fmt"
	"time"

	"github.com/editgroups/editgroups/internal/ingest"
)

// ========================================
// Edit Scenarios
// ========================================

// Reference batches. Record ids and revision ids of different scenarios
// never overlap.
var (
	ORBatchStart = time.Date(2018, 3, 6, 16, 39, 37, 0, time.UTC)
	ORBatchEnd   = time.Date(2018, 3, 6, 16, 41, 10, 0, time.UTC)

	QSBatchStart = time.Date(2018, 3, 7, 16, 20, 12, 0, time.UTC)
	QSBatchEnd   = time.Date(2018, 3, 7, 16, 20, 14, 0, time.UTC)
)

const (
	ORBatchSize    = 51
	ORBatchUID     = "ca7d7cc"
	ORBatchSummary = "import Charity Navigator"

	QSBatchSize = 4
	QSBatchUID  = "2120"

	QSNewItemsSize  = 82
	QSNewItemsPages = 9
	QSNewItemsUID   = "2121"

	EGBatchUID = "c367abf"
)

// ORBatch returns 51 OpenRefine edits by Pintoch spread from 16:39:37 to
// 16:41:10, each on its own item.
func ORBatch() []*ingest.RawEdit {
	span := int64(ORBatchEnd.Sub(ORBatchStart).Seconds())
	records := make([]*ingest.RawEdit, ORBatchSize)
	for i := range records {
		offset := int64(i) * span / (ORBatchSize - 1)
		records[i] = NewRawEditBuilder().
			WithID(int64(700000000+i)).
			WithRevisions(int64(640000000+i), int64(640100000+i)).
			WithTitle(fmt.Sprintf("Q%d", 5000000+i)).
			WithUser("Pintoch").
			WithComment("/* wbeditentity-update:0| */ import Charity Navigator ([[Wikidata:Edit groups/OR/" + ORBatchUID + "|discuss]])").
			WithTime(ORBatchStart.Add(time.Duration(offset) * time.Second)).
			Build()
	}
	return records
}

// Hijack returns OpenRefine edits by another user reusing the uid of ORBatch.
func Hijack() []*ingest.RawEdit {
	records := make([]*ingest.RawEdit, 3)
	for i := range records {
		records[i] = NewRawEditBuilder().
			WithID(int64(710000000+i)).
			WithRevisions(int64(641000000+i), int64(641100000+i)).
			WithTitle(fmt.Sprintf("Q%d", 5100000+i)).
			WithUser("Rageux").
			WithComment("/* wbeditentity-update:0| */ totally legit ([[Wikidata:Edit groups/OR/" + ORBatchUID + "|discuss]])").
			WithTime(ORBatchEnd.Add(time.Hour)).
			Build()
	}
	return records
}

func qsComment(action, uid string) string {
	return "/* " + action + ":1| */ [[Property:P3896]]: Data:Neighbourhoods/New York City.map, #quickstatements; [[:toollabs:quickstatements/#mode=batch&batch=" + uid + "|batch #" + uid + "]] by [[User:Pintoch|]]"
}

// QSBatch returns four QuickStatements edits made through QuickStatementsBot
// on behalf of Pintoch, between 16:20:12 and 16:20:14.
func QSBatch() []*ingest.RawEdit {
	offsets := []int{0, 1, 1, 2}
	records := make([]*ingest.RawEdit, len(offsets))
	for i, offset := range offsets {
		records[i] = NewRawEditBuilder().
			WithID(int64(720000000+i)).
			WithRevisions(int64(642000000+i), int64(642100000+i)).
			WithTitle(fmt.Sprintf("Q%d", 5200000+i)).
			WithUser("QuickStatementsBot").
			WithComment(qsComment("wbcreateclaim-create", QSBatchUID)).
			WithTime(QSBatchStart.Add(time.Duration(offset) * time.Second)).
			AsBot().
			Build()
	}
	return records
}

// QSNewItems returns a QuickStatements batch creating nine items and adding
// claims to them, 82 edits in total.
func QSNewItems() []*ingest.RawEdit {
	start := QSBatchEnd.Add(time.Minute)
	records := make([]*ingest.RawEdit, 0, QSNewItemsSize)
	for i := 0; len(records) < QSNewItemsSize; i++ {
		item := i % QSNewItemsPages
		b := NewRawEditBuilder().
			WithID(int64(730000000+i)).
			WithRevisions(int64(643000000+i-1), int64(643000000+i)).
			WithTitle(fmt.Sprintf("Q%d", 5300000+item)).
			WithUser("QuickStatementsBot").
			WithTime(start.Add(time.Duration(i) * time.Second)).
			AsBot()
		if i < QSNewItemsPages {
			b = b.WithComment(qsComment("wbeditentity-create", QSNewItemsUID)).AsPageCreation()
		} else {
			b = b.WithComment(qsComment("wbcreateclaim-create", QSNewItemsUID))
		}
		records = append(records, b.Build())
	}
	return records
}

// RevertEdits returns EditGroups undo edits by Pintoch, one per revision.
func RevertEdits(revisions ...int64) []*ingest.RawEdit {
	records := make([]*ingest.RawEdit, len(revisions))
	for i, rev := range revisions {
		records[i] = NewRawEditBuilder().
			WithID(int64(740000000+i)).
			WithRevisions(int64(644000000+i), int64(644100000+i)).
			WithTitle(fmt.Sprintf("Q%d", 5400000+i)).
			WithUser("Pintoch").
			WithComment(fmt.Sprintf("/* undo:0||%d|Pintoch */ this was just dumb ([[:toollabs:editgroups/b/EG/%s|details]])", rev, EGBatchUID)).
			WithTime(ORBatchEnd.Add(2 * time.Hour).Add(time.Duration(i) * time.Second)).
			Build()
	}
	return records
}

// Unmatched returns edits no tool recognizes.
func Unmatched(n int) []*ingest.RawEdit {
	records := make([]*ingest.RawEdit, n)
	for i := range records {
		records[i] = NewRawEditBuilder().
			WithID(int64(750000000+i)).
			WithRevisions(int64(645000000+i), int64(645100000+i)).
			WithComment("/* wbsetlabel-add:1|en */ manual label").
			Build()
	}
	return records
}

// Lines encodes records as JSON lines.
func Lines(records []*ingest.RawEdit) []byte {
	var out []byte
	for _, rec := range records {
		b := &RawEditBuilder{rec: *rec}
		out = append(out, b.JSON()...)
		out = append(out, '\n')
	}
	return out
}
