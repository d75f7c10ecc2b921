package render

import (
	"context"
	"errors"
	"testing"
)

const attendancePage = `<!DOCTYPE html><html><head><title>admin</title></head><body>
<h1>Asistencias semanales</h1>
<form id="changelist-form">
<div class="actions">
<select name="action" required>
<option value="" selected>---------</option>
<option value="delete_selected">Delete selected</option>
<option value="export_excel">Export to Excel</option>
</select>
<button type="submit" class="button">Go</button>
</div>
<table id="result_list">
<thead><tr><th><input type="checkbox" id="action-toggle"></th><th>Student</th></tr></thead>
<tbody>
<tr><td><input type="checkbox" name="_selected_action" value="1" class="action-select"></td><td>Ana</td></tr>
<tr><td><input type="checkbox" name="_selected_action" value="2" class="action-select"></td><td>Luis</td></tr>
</tbody>
</table>
</form></body></html>`

func TestDOMControlsSelectOption(t *testing.T) {
	t.Parallel()
	doc := mustDoc(t, attendancePage)
	c := NewDOMControls(doc, "action-toggle", DefaultRowSelector)

	if err := c.SelectOption(context.Background(), "action", "export_excel"); err != nil {
		t.Fatalf("SelectOption: %v", err)
	}
	selected := doc.Find("select[name=action] option[selected]")
	if selected.Length() != 1 || selected.AttrOr("value", "") != "export_excel" {
		t.Fatalf("selected options = %d (%q)", selected.Length(), selected.AttrOr("value", ""))
	}

	if err := c.SelectOption(context.Background(), "action", "no_such_action"); err != nil {
		t.Fatalf("SelectOption unknown value: %v", err)
	}
	if n := doc.Find("option[selected]").Length(); n != 0 {
		t.Fatalf("unknown value left %d options selected", n)
	}
}

func TestDOMControlsMissingSelect(t *testing.T) {
	t.Parallel()
	c := NewDOMControls(mustDoc(t, `<html><body><h1>x</h1></body></html>`), "action-toggle", DefaultRowSelector)
	if err := c.SelectOption(context.Background(), "action", "export_excel"); !errors.Is(err, ErrControlNotFound) {
		t.Fatalf("expected ErrControlNotFound, got %v", err)
	}
	if err := c.Click(context.Background(), "action-toggle"); !errors.Is(err, ErrControlNotFound) {
		t.Fatalf("expected ErrControlNotFound, got %v", err)
	}
}

func TestDOMControlsSelectAllToggle(t *testing.T) {
	t.Parallel()
	doc := mustDoc(t, attendancePage)
	c := NewDOMControls(doc, "action-toggle", DefaultRowSelector)

	if err := c.Click(context.Background(), "action-toggle"); err != nil {
		t.Fatalf("Click: %v", err)
	}
	if c.Clicks("action-toggle") != 1 {
		t.Fatalf("clicks = %d", c.Clicks("action-toggle"))
	}
	if _, ok := doc.Find("#action-toggle").Attr("checked"); !ok {
		t.Fatalf("toggle not checked")
	}
	if n := doc.Find("input.action-select[checked]").Length(); n != 2 {
		t.Fatalf("checked rows = %d", n)
	}
	if n := doc.Find("tbody tr.selected").Length(); n != 2 {
		t.Fatalf("selected rows = %d", n)
	}

	if err := c.Click(context.Background(), "action-toggle"); err != nil {
		t.Fatalf("Click: %v", err)
	}
	if n := doc.Find("input[checked]").Length(); n != 0 {
		t.Fatalf("second click left %d boxes checked", n)
	}
	if n := doc.Find("tr.selected").Length(); n != 0 {
		t.Fatalf("second click left %d rows selected", n)
	}
}

func TestWorkflowOnDOMControls(t *testing.T) {
	t.Parallel()
	doc := mustDoc(t, attendancePage)
	c := NewDOMControls(doc, "action-toggle", DefaultRowSelector)
	sched := &manualScheduler{}
	wf := NewWorkflow(DefaultWorkflowConfig(), c, sched, nil)

	if err := wf.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.Clicks("action-toggle") != 0 {
		t.Fatalf("toggle clicked before the delay")
	}
	sched.fire()
	if c.Clicks("action-toggle") != 1 {
		t.Fatalf("clicks after delay = %d", c.Clicks("action-toggle"))
	}
	if doc.Find("option[selected]").AttrOr("value", "") != "export_excel" {
		t.Fatalf("export action not selected")
	}
}
