package convert

import (
	"fmt"
	"strings"
)

// Affordances are located by role and accessible name, never by position.
// Each builder returns an XPath expression for chromedp.BySearch.

// xpathLiteral quotes s as an XPath string literal.
func xpathLiteral(s string) string {
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	parts := strings.Split(s, `"`)
	quoted := make([]string, 0, 2*len(parts))
	for i, p := range parts {
		if i > 0 {
			quoted = append(quoted, `'"'`)
		}
		quoted = append(quoted, `"`+p+`"`)
	}
	return "concat(" + strings.Join(quoted, ",") + ")"
}

// labelled matches elements whose accessible name is label: aria-label,
// title, or a <label for=...> pointing at the element.
func labelled(label string) string {
	lit := xpathLiteral(label)
	return fmt.Sprintf(`(@aria-label=%[1]s or @title=%[1]s or @id=//label[normalize-space(.)=%[1]s]/@for)`, lit)
}

// buttonXPath matches a button-like element named label.
func buttonXPath(label string) string {
	lit := xpathLiteral(label)
	return fmt.Sprintf(
		`//*[(self::button or self::a or @role="button" or @role="link" or (self::input and (@type="button" or @type="submit"))) and (normalize-space(.)=%s or @value=%s or %s)]`,
		lit, lit, labelled(label),
	)
}

// sliderXPath matches a slider named label. An empty label matches the
// first slider on the page.
func sliderXPath(label string) string {
	role := `(@role="slider" or (self::input and @type="range"))`
	if label == "" {
		return fmt.Sprintf(`(//*[%s])[1]`, role)
	}
	return fmt.Sprintf(`//*[%s and %s]`, role, labelled(label))
}

// textFieldXPath matches a text or number input named label. Placeholder
// text counts as a name.
func textFieldXPath(label string) string {
	lit := xpathLiteral(label)
	return fmt.Sprintf(
		`//input[(not(@type) or @type="text" or @type="number") and (@placeholder=%s or %s)]`,
		lit, labelled(label),
	)
}

// fileInputXPath matches the file input of the upload region named label.
// The input may carry the name itself or sit inside the named region.
// An empty label matches the first file input on the page.
func fileInputXPath(label string) string {
	if label == "" {
		return `(//input[@type="file"])[1]`
	}
	lit := xpathLiteral(label)
	return fmt.Sprintf(
		`(//input[@type="file" and %s] | //*[@aria-label=%s or normalize-space(text())=%s]//input[@type="file"] | //*[normalize-space(text())=%s]/..//input[@type="file"])[1]`,
		labelled(label), lit, lit, lit,
	)
}
