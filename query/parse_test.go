package query

import (
	"errors"
	"net/url"
	"reflect"
	"testing"
)

func TestParseBracketFilters(t *testing.T) {
	t.Run("bare name defaults to eq", func(t *testing.T) {
		p, err := Parse(url.Values{"filter[title]": {"Go"}})
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		want := []Filter{{Name: "title", Op: OpEq, Val: "Go"}}
		if !reflect.DeepEqual(p.Filters, want) {
			t.Errorf("expected %v, got %v", want, p.Filters)
		}
	})

	t.Run("explicit operator", func(t *testing.T) {
		p, err := Parse(url.Values{"filter[views][gt]": {"100"}})
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		want := []Filter{{Name: "views", Op: OpGt, Val: "100"}}
		if !reflect.DeepEqual(p.Filters, want) {
			t.Errorf("expected %v, got %v", want, p.Filters)
		}
	})

	t.Run("in splits comma lists", func(t *testing.T) {
		p, err := Parse(url.Values{"filter[status][in]": {"draft,published"}})
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		want := []Filter{{Name: "status", Op: OpIn, Val: []any{"draft", "published"}}}
		if !reflect.DeepEqual(p.Filters, want) {
			t.Errorf("expected %v, got %v", want, p.Filters)
		}
	})

	t.Run("repeated parameters combine with and", func(t *testing.T) {
		p, err := Parse(url.Values{"filter[views][gt]": {"10", "20"}})
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if len(p.Filters) != 2 {
			t.Fatalf("expected 2 filters, got %d", len(p.Filters))
		}
	})

	t.Run("dotted name builds a field path", func(t *testing.T) {
		p, err := Parse(url.Values{"filter[author.name]": {"Ann"}})
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		path := p.Filters[0].FieldPath()
		if !reflect.DeepEqual(path, []string{"author", "name"}) {
			t.Errorf("expected [author name], got %v", path)
		}
	})
}

func TestParseJSONFilters(t *testing.T) {
	t.Run("leaf list", func(t *testing.T) {
		raw := `[{"name":"title","op":"ilike","val":"%go%"},{"name":"views","op":"ge","val":10}]`
		p, err := Parse(url.Values{"filter": {raw}})
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if len(p.Filters) != 2 {
			t.Fatalf("expected 2 filters, got %d", len(p.Filters))
		}
		if p.Filters[0].Op != OpILike || p.Filters[0].Val != "%go%" {
			t.Errorf("unexpected first filter: %+v", p.Filters[0])
		}
	})

	t.Run("missing op defaults to eq", func(t *testing.T) {
		p, err := Parse(url.Values{"filter": {`[{"name":"title","val":"Go"}]`}})
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if p.Filters[0].Op != OpEq {
			t.Errorf("expected eq, got %q", p.Filters[0].Op)
		}
	})

	t.Run("nested groups", func(t *testing.T) {
		raw := `[{"or":[{"name":"status","op":"eq","val":"draft"},{"not":{"name":"views","op":"lt","val":5}}]}]`
		p, err := Parse(url.Values{"filter": {raw}})
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		root := p.Filters[0]
		if root.IsLeaf() {
			t.Fatal("expected a group node")
		}
		if len(root.Or) != 2 {
			t.Fatalf("expected 2 or-children, got %d", len(root.Or))
		}
		if root.Or[1].Not == nil || root.Or[1].Not.Name != "views" {
			t.Errorf("expected a not-wrapped views leaf, got %+v", root.Or[1])
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		if _, err := Parse(url.Values{"filter": {`{"name":`}}); !errors.Is(err, ErrInvalidFilter) {
			t.Errorf("expected ErrInvalidFilter, got %v", err)
		}
	})

	t.Run("node without name", func(t *testing.T) {
		if _, err := Parse(url.Values{"filter": {`[{"op":"eq","val":1}]`}}); !errors.Is(err, ErrInvalidFilter) {
			t.Errorf("expected ErrInvalidFilter, got %v", err)
		}
	})

	t.Run("node mixing groups", func(t *testing.T) {
		raw := `[{"and":[{"name":"a","val":1}],"or":[{"name":"b","val":2}]}]`
		if _, err := Parse(url.Values{"filter": {raw}}); !errors.Is(err, ErrInvalidFilter) {
			t.Errorf("expected ErrInvalidFilter, got %v", err)
		}
	})

	t.Run("error names the parameter", func(t *testing.T) {
		_, err := Parse(url.Values{"filter": {`broken`}})
		var qerr *Error
		if !errors.As(err, &qerr) {
			t.Fatalf("expected *query.Error, got %T", err)
		}
		if qerr.Parameter != "filter" {
			t.Errorf("expected parameter filter, got %q", qerr.Parameter)
		}
	})
}

func TestParseSort(t *testing.T) {
	t.Run("mixed directions", func(t *testing.T) {
		p, err := Parse(url.Values{"sort": {"-created-at,title"}})
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		want := []SortField{
			{Field: "created-at", Desc: true},
			{Field: "title"},
		}
		if !reflect.DeepEqual(p.Sorts, want) {
			t.Errorf("expected %v, got %v", want, p.Sorts)
		}
	})

	t.Run("empty field", func(t *testing.T) {
		if _, err := Parse(url.Values{"sort": {"title,,views"}}); !errors.Is(err, ErrInvalidSort) {
			t.Errorf("expected ErrInvalidSort, got %v", err)
		}
	})

	t.Run("lone minus", func(t *testing.T) {
		if _, err := Parse(url.Values{"sort": {"-"}}); !errors.Is(err, ErrInvalidSort) {
			t.Errorf("expected ErrInvalidSort, got %v", err)
		}
	})
}

func TestParsePage(t *testing.T) {
	t.Run("number and size", func(t *testing.T) {
		p, err := Parse(url.Values{"page[number]": {"3"}, "page[size]": {"25"}})
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if p.Page.Number != 3 || p.Page.Size != 25 {
			t.Errorf("unexpected page: %+v", p.Page)
		}
	})

	t.Run("offset and limit", func(t *testing.T) {
		p, err := Parse(url.Values{"page[offset]": {"40"}, "page[limit]": {"20"}})
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if p.Page.Offset != 40 || p.Page.Limit != 20 {
			t.Errorf("unexpected page: %+v", p.Page)
		}
	})

	t.Run("rejects non-integers", func(t *testing.T) {
		if _, err := Parse(url.Values{"page[size]": {"many"}}); !errors.Is(err, ErrInvalidPage) {
			t.Errorf("expected ErrInvalidPage, got %v", err)
		}
	})

	t.Run("rejects negatives", func(t *testing.T) {
		if _, err := Parse(url.Values{"page[size]": {"-1"}}); !errors.Is(err, ErrInvalidPage) {
			t.Errorf("expected ErrInvalidPage, got %v", err)
		}
	})

	t.Run("rejects unknown subscript", func(t *testing.T) {
		if _, err := Parse(url.Values{"page[cursor]": {"abc"}}); !errors.Is(err, ErrInvalidPage) {
			t.Errorf("expected ErrInvalidPage, got %v", err)
		}
	})
}

func TestParseInclude(t *testing.T) {
	p, err := Parse(url.Values{"include": {"author,comments.author"}})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := [][]string{{"author"}, {"comments", "author"}}
	if !reflect.DeepEqual(p.Include, want) {
		t.Errorf("expected %v, got %v", want, p.Include)
	}
	if !p.HasInclude() {
		t.Error("expected HasInclude to be true")
	}
}

func TestParseFields(t *testing.T) {
	t.Run("per-type fieldsets", func(t *testing.T) {
		p, err := Parse(url.Values{
			"fields[articles]": {"title,body"},
			"fields[authors]":  {"name"},
		})
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}

		fields, ok := p.Fieldset("articles")
		if !ok || !reflect.DeepEqual(fields, []string{"title", "body"}) {
			t.Errorf("unexpected articles fieldset: %v (%v)", fields, ok)
		}
		if _, ok := p.Fieldset("comments"); ok {
			t.Error("expected no fieldset for comments")
		}
	})

	t.Run("empty value selects no attributes", func(t *testing.T) {
		p, err := Parse(url.Values{"fields[articles]": {""}})
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		fields, ok := p.Fieldset("articles")
		if !ok {
			t.Fatal("expected a fieldset entry")
		}
		if len(fields) != 0 {
			t.Errorf("expected empty fieldset, got %v", fields)
		}
	})

	t.Run("missing resource type", func(t *testing.T) {
		if _, err := Parse(url.Values{"fields": {"title"}}); !errors.Is(err, ErrInvalidFields) {
			t.Errorf("expected ErrInvalidFields, got %v", err)
		}
	})
}

func TestParseIgnoresUnknownFamilies(t *testing.T) {
	p, err := Parse(url.Values{"pretty": {"true"}, "api_key": {"x"}})
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(p.Filters) != 0 || len(p.Sorts) != 0 || p.HasInclude() {
		t.Errorf("expected empty params, got %+v", p)
	}
}

func TestPageLimitOffset(t *testing.T) {
	cases := []struct {
		name       string
		page       Page
		def, max   int
		wantLimit  int
		wantOffset int
	}{
		{"defaults apply", Page{}, 10, 100, 10, 0},
		{"size becomes limit", Page{Size: 25}, 10, 100, 25, 0},
		{"number offsets by size", Page{Number: 3, Size: 25}, 10, 100, 25, 50},
		{"explicit limit wins over size", Page{Limit: 5, Size: 25}, 10, 100, 5, 0},
		{"offset passes through", Page{Offset: 40, Limit: 20}, 10, 100, 20, 40},
		{"max caps the limit", Page{Size: 500}, 10, 100, 100, 0},
		{"number without size uses resolved limit", Page{Number: 2}, 10, 100, 10, 10},
		{"no caps configured", Page{Size: 500}, 0, 0, 500, 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			limit, offset := tc.page.LimitOffset(tc.def, tc.max)
			if limit != tc.wantLimit || offset != tc.wantOffset {
				t.Errorf("got limit=%d offset=%d, want limit=%d offset=%d",
					limit, offset, tc.wantLimit, tc.wantOffset)
			}
		})
	}
}
