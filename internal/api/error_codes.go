// internal/api/error_codes.go
package api

// API错误代码常量
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"
	ErrorConflict      = "CONFLICT"
	ErrorRateLimited   = "RATE_LIMIT_EXCEEDED"

	// 故事与图相关错误
	ErrorStoryNotFound   = "STORY_NOT_FOUND"
	ErrorSceneNotFound   = "SCENE_NOT_FOUND"
	ErrorChoiceNotFound  = "CHOICE_NOT_FOUND"
	ErrorSegmentNotFound = "SEGMENT_NOT_FOUND"

	// 编辑模式与保存
	ErrorTextModeActive  = "TEXT_MODE_ACTIVE"
	ErrorNotInTextMode   = "NOT_IN_TEXT_MODE"
	ErrorTextParseFailed = "TEXT_PARSE_FAILED"
	ErrorSaveInProgress  = "SAVE_IN_PROGRESS"
	ErrorSaveFailed      = "SAVE_FAILED"

	// 资源文件
	ErrorAssetNotFound      = "ASSET_NOT_FOUND"
	ErrorUnsupportedMedia   = "UNSUPPORTED_MEDIA"
	ErrorIncompatibleAsset  = "INCOMPATIBLE_ASSET"
	ErrorFileTooLarge       = "FILE_TOO_LARGE"
	ErrorFileUploadFailed   = "FILE_UPLOAD_FAILED"
	ErrorRenderFormat       = "RENDER_FORMAT_INVALID"
	ErrorCollaboratorFailed = "COLLABORATOR_FAILED"

	// LLM服务相关错误
	ErrorLLMConfigInvalid = "LLM_CONFIG_INVALID"
)
