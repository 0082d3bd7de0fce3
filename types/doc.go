// Package types provides the core data model shared across quorum.
// This package has ZERO dependencies on other quorum packages to avoid
// circular imports. All other packages should import types from here.
package types
