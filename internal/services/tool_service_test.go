package services

import (
	"testing"

	"github.com/editgroups/editgroups/internal/testhelpers"
)

const twoTools = `tools:
  - name: OpenRefine
    shortid: OR
    idregex: '.*\(\[\[Wikidata:Edit groups/OR/([a-f0-9]{4,32})\|discuss\]\]\)'
    idgroupid: 1
    summaryregex: '(?:/\* .*? \*/)? *(.*?) *\(\[\[Wikidata:Edit groups/OR/'
    summarygroupid: 1
    url: https://www.wikidata.org/wiki/Wikidata:Tools/OpenRefine
  - name: QuickStatements
    shortid: QSv2
    idregex: '.*batch=(\d+)'
    idgroupid: 1
    summaryregex: '.*?(#quickstatements)'
    summarygroupid: 1
    userregex: '.* by \[\[User:([^|\]]+)\|'
    usergroupid: 1
    url: https://tools.wmflabs.org/quickstatements/
`

const reorderedTools = `tools:
  - name: QuickStatements v2
    shortid: QSv2
    idregex: '.*batch=(\d+)'
    idgroupid: 1
    summaryregex: '.*?(#quickstatements)'
    summarygroupid: 1
    url: https://quickstatements.toolforge.org/
  - name: OpenRefine
    shortid: OR
    idregex: '.*/OR/([a-f0-9]{4,32})'
    idgroupid: 1
    summaryregex: '(.*)'
    summarygroupid: 1
    url: https://openrefine.org/
`

func TestToolService_LoadTools(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	svc := NewToolService(db)

	created, updated, err := svc.LoadTools(testhelpers.WriteTestFile(t, "tools.yaml", twoTools))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testhelpers.AssertEqual(t, 2, created, "created")
	testhelpers.AssertEqual(t, 0, updated, "updated")

	tools, err := svc.ListTools()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tools) != 2 || tools[0].ShortID != "OR" || tools[1].ShortID != "QSv2" {
		t.Fatalf("unexpected tools %+v", tools)
	}
	testhelpers.AssertEqual(t, 1, tools[1].UserGroup, "user group")
	orID := tools[0].ID

	created, updated, err = svc.LoadTools(testhelpers.WriteTestFile(t, "tools.yaml", reorderedTools))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testhelpers.AssertEqual(t, 0, created, "created on reload")
	testhelpers.AssertEqual(t, 2, updated, "updated on reload")

	tools, err = svc.ListTools()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tools) != 2 || tools[0].ShortID != "QSv2" || tools[1].ShortID != "OR" {
		t.Fatalf("expected file order to be the registry order, got %+v", tools)
	}
	testhelpers.AssertEqual(t, "QuickStatements v2", tools[0].Name, "updated name")
	testhelpers.AssertEqual(t, "", tools[0].UserRegex, "cleared user pattern")
	testhelpers.AssertEqual(t, orID, tools[1].ID, "ids are kept")

	or, err := svc.GetTool("OR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testhelpers.AssertEqual(t, "https://openrefine.org/", or.URL, "updated url")
}

func TestToolService_LoadTools_KeepsUnlistedToolsLast(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	svc := NewToolService(db)

	if _, _, err := svc.LoadTools(testhelpers.WriteTestFile(t, "tools.yaml", twoTools)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	onlyQS := `tools:
  - name: QuickStatements
    shortid: QSv2
    idregex: '.*batch=(\d+)'
    idgroupid: 1
    summaryregex: '.*?(#quickstatements)'
    summarygroupid: 1
`
	if _, _, err := svc.LoadTools(testhelpers.WriteTestFile(t, "tools.yaml", onlyQS)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tools, err := svc.ListTools()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tools) != 2 || tools[0].ShortID != "QSv2" || tools[1].ShortID != "OR" {
		t.Fatalf("expected the unlisted tool after the file's tools, got %+v", tools)
	}
	if tools[0].Position == tools[1].Position {
		t.Errorf("positions must not tie, both are %d", tools[0].Position)
	}
	testhelpers.AssertEqual(t, 1, tools[1].Position, "position of the unlisted tool")
}

func TestToolService_LoadTools_InvalidFile(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	svc := NewToolService(db)

	invalid := `tools:
  - name: Broken
    shortid: BR
    idregex: '(unclosed'
    idgroupid: 1
    summaryregex: '(.*)'
    summarygroupid: 1
`
	if _, _, err := svc.LoadTools(testhelpers.WriteTestFile(t, "tools.yaml", invalid)); err == nil {
		t.Fatal("expected an error for an invalid pattern")
	}
	if _, _, err := svc.LoadTools("/nonexistent/tools.yaml"); err == nil {
		t.Fatal("expected an error for a missing file")
	}

	tools, err := svc.ListTools()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testhelpers.AssertEqual(t, 0, len(tools), "stored tools")
}

func TestToolService_LoadsShippedRegistry(t *testing.T) {
	db := testhelpers.NewTestDB(t)
	svc := NewToolService(db)

	shipped := testhelpers.LoadTools(t)
	created, _, err := svc.LoadTools("../../tools.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	testhelpers.AssertEqual(t, len(shipped), created, "created")
}
