package types

import (
	"reflect"
	"testing"
)

func TestItem_SetPathDerivesShortID(t *testing.T) {
	item := Item{}
	item.SetPath("/site/folder/page")

	if item.Path() != "/site/folder/page" {
		t.Errorf("path = %q", item.Path())
	}
	if item[KeyShortID] != "page" {
		t.Errorf("id = %v", item[KeyShortID])
	}
}

func TestItem_Validate(t *testing.T) {
	valid := Item{KeyUID: "abc", KeyType: "Document", KeyPath: "/site/a"}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid item rejected: %v", err)
	}

	for _, missing := range []string{KeyUID, KeyType, KeyPath} {
		item := Item{KeyUID: "abc", KeyType: "Document", KeyPath: "/site/a"}
		delete(item, missing)
		if err := item.Validate(); err == nil {
			t.Errorf("item without %s accepted", missing)
		}
	}
}

func TestItem_ReviewStateDefault(t *testing.T) {
	if got := (Item{}).ReviewState(); got != "--" {
		t.Errorf("state = %q", got)
	}
	if got := (Item{KeyReviewState: "published"}).ReviewState(); got != "published" {
		t.Errorf("state = %q", got)
	}
}

func TestItem_IsNewClearsMarker(t *testing.T) {
	item := Item{KeyNewItem: true}
	if !item.IsNew() {
		t.Error("marker not reported")
	}
	if item.IsNew() {
		t.Error("marker not cleared")
	}
}

func TestItem_ExportableStripsInternalKeys(t *testing.T) {
	item := Item{
		KeyUID:    "abc",
		KeyOldUID: "old",
		KeyBlobs:  map[string]any{},
		"title":   "keep",
	}
	out := item.Exportable()
	if _, ok := out[KeyOldUID]; ok {
		t.Error("internal key exported")
	}
	if _, ok := out[KeyBlobs]; ok {
		t.Error("staging key exported")
	}
	if out["title"] != "keep" || out[KeyUID] != "abc" {
		t.Errorf("payload lost: %v", out)
	}
}

func TestAllParents(t *testing.T) {
	got := AllParents("/site/a/b/c")
	want := map[string]struct{}{
		"/site":     {},
		"/site/a":   {},
		"/site/a/b": {},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parents = %v, want %v", got, want)
	}

	if len(AllParents("/site")) != 0 {
		t.Errorf("top level record has parents: %v", AllParents("/site"))
	}
}
