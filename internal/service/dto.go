package service

import (
	"github.com/superchat/server/internal/domain"
)

// AppendMessageDTO carries the client-supplied part of an append. The file
// descriptor, when present, comes from the upload collaborator.
type AppendMessageDTO struct {
	Text string
	Kind domain.MessageKind
	File *domain.FileRef
}
