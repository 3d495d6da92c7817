// internal/api/asset_handlers.go
package api

import (
	"net/http"

	"github.com/90n9/talepick/internal/editor"
	"github.com/90n9/talepick/internal/models"
	"github.com/gin-gonic/gin"
)

// UploadForm 上传文件时附带的绑定目标
type UploadForm struct {
	Target       string `form:"target" binding:"omitempty,oneof=library segment ending background_audio gallery cover header"`
	SceneID      string `form:"scene_id"`
	SegmentIndex int    `form:"segment_index" binding:"gte=0"`
	Caption      string `form:"caption" binding:"max=200"`
}

// ListAssets 列出故事的资源，unused=true 时只列出未被引用的
func (h *Handler) ListAssets(c *gin.Context) {
	unused := c.Query("unused") == "true"
	var list []models.Asset
	ok := h.do(c, func(sess *editor.Session) error {
		if unused {
			list = sess.UnusedAssets()
		} else {
			list = sess.Assets()
		}
		return nil
	})
	if ok {
		h.Response.Success(c, gin.H{"assets": list, "count": len(list)})
	}
}

// UploadAsset 上传图片或音频并绑定到目标字段
func (h *Handler) UploadAsset(c *gin.Context) {
	var form UploadForm
	if err := c.ShouldBind(&form); err != nil {
		h.Response.BadRequest(c, "invalid upload target", err.Error())
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		h.Response.BadRequest(c, "file is required", err.Error())
		return
	}
	file, err := header.Open()
	if err != nil {
		h.Response.Error(c, http.StatusInternalServerError, ErrorFileUploadFailed, "failed to read uploaded file")
		return
	}
	defer file.Close()

	target := editor.AttachTarget{
		Kind:         editor.AttachKind(form.Target),
		SceneID:      form.SceneID,
		SegmentIndex: form.SegmentIndex,
		Caption:      form.Caption,
	}
	asset, err := h.Editor.Upload(c.Request.Context(), c.Param("id"), header.Filename, file, target)
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Created(c, asset, "asset uploaded")
}

// DeleteAsset 删除单个资源，引用它的字段保持不变并在检查中报告为缺图
func (h *Handler) DeleteAsset(c *gin.Context) {
	removed, err := h.Editor.DeleteAssets(c.Request.Context(), c.Param("id"), c.Param("asset_id"))
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"removed": removed}, "asset deleted")
}

// DeleteUnusedAssets 删除所有未被引用的资源
func (h *Handler) DeleteUnusedAssets(c *gin.Context) {
	removed, err := h.Editor.DeleteAssets(c.Request.Context(), c.Param("id"), "")
	if err != nil {
		h.Response.FromError(c, err)
		return
	}
	h.Response.Success(c, gin.H{"removed": removed, "count": len(removed)})
}
