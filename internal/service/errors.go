package service

import "errors"

// 分类接口返回给客户端的错误信息。
const (
	MsgFallback          = "Oops, apologies - there was some error"
	MsgMustUsePost       = "must use POST request"
	MsgAnonymous         = "Sorry, but anonymous users cannot access this view"
	MsgForbidden         = "Sorry, but you cannot access this view"
	MsgInvalidNewName    = "Missing or invalid new category name parameter"
	MsgParentNotFound    = "Requested parent category doesn't exist"
	MsgInvalidDepth      = "Invalid category nesting depth level"
	MsgDuplicateName     = "There is already a category with that name"
	MsgMissingOrInvalid  = "Missing or invalid required parameter"
	MsgCategoryNotFound  = "Requested category doesn't exist"
	MsgMissingParameter  = "Missing required parameter"
	MsgTagNotFound       = "Requested tag doesn't exist"
	MsgMissingTagID      = "Missing tag_id parameter"
	MsgInvalidToken      = "Invalid token provided"
	MsgQuestionNotFound  = "Requested question doesn't exist"
	MsgMissingQuestion   = "Missing or invalid title parameter"
	MsgInvalidMaxDepth   = "Invalid maximum tree depth"
	MsgCannotRetagOthers = "Sorry, but you cannot retag this question"
)

var (
	// ErrFeatureDisabled 表示分类功能未开启，对外表现为 404。
	ErrFeatureDisabled = errors.New("category feature is disabled")
	// ErrCategoryNotFound 表示按名称过滤时找不到分类，对外表现为 404。
	ErrCategoryNotFound = errors.New("category not found")
)

// ValidationError 表示请求参数或业务校验失败，Message 会原样返回给客户端。
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// PermissionError 表示调用方无权执行该操作。
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string { return e.Message }

func validation(msg string) error { return &ValidationError{Message: msg} }

func permission(msg string) error { return &PermissionError{Message: msg} }

// IsValidation 判断 err 是否为 ValidationError。
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsPermission 判断 err 是否为 PermissionError。
func IsPermission(err error) bool {
	var p *PermissionError
	return errors.As(err, &p)
}
