// Package wiki contains MediaWiki domain constants and title helpers shared
// across the scanner, resolver and download packages.
package wiki

// Namespace identifies the MediaWiki namespace of a page or link target.
type Namespace int

// Standard MediaWiki namespace numbers as used by Wikimedia Commons.
const (
	NamespaceMain          Namespace = 0
	NamespaceTalk          Namespace = 1
	NamespaceUser          Namespace = 2
	NamespaceUserTalk      Namespace = 3
	NamespaceProject       Namespace = 4
	NamespaceProjectTalk   Namespace = 5
	NamespaceFile          Namespace = 6
	NamespaceFileTalk      Namespace = 7
	NamespaceMediaWiki     Namespace = 8
	NamespaceMediaWikiTalk Namespace = 9
	NamespaceTemplate      Namespace = 10
	NamespaceTemplateTalk  Namespace = 11
	NamespaceHelp          Namespace = 12
	NamespaceHelpTalk      Namespace = 13
	NamespaceCategory      Namespace = 14
	NamespaceCategoryTalk  Namespace = 15
)

// String returns the canonical English namespace prefix, or empty for main.
func (n Namespace) String() string {
	switch n {
	case NamespaceMain:
		return ""
	case NamespaceFile:
		return "File"
	case NamespaceCategory:
		return "Category"
	case NamespaceTemplate:
		return "Template"
	case NamespaceUser:
		return "User"
	case NamespaceProject:
		return "Project"
	case NamespaceHelp:
		return "Help"
	case NamespaceMediaWiki:
		return "MediaWiki"
	default:
		return "Unknown"
	}
}
