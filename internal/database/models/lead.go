package models

import "github.com/google/uuid"

// Lead is a potential customer in the sales funnel. Field names follow the
// external API contract (Portuguese, like the product UI).
type Lead struct {
	Base
	Nome        string    `gorm:"size:100;not null" json:"nome"`
	Email       string    `gorm:"size:100;not null" json:"email"`
	Telefone    string    `gorm:"size:20" json:"telefone"`
	Empresa     string    `gorm:"size:100" json:"empresa"`
	Cargo       string    `gorm:"size:100" json:"cargo"`
	Interesse   string    `gorm:"size:100" json:"interesse"`
	Origem      string    `gorm:"size:50" json:"origem"`
	Status      string    `gorm:"size:50;default:'novo'" json:"status"`
	Observacoes string    `gorm:"type:text" json:"observacoes"`
	UsuarioID   uuid.UUID `gorm:"type:uuid;index" json:"usuario_id"`

	Usuario *User `gorm:"foreignKey:UsuarioID" json:"usuario,omitempty"`
}

func (Lead) TableName() string {
	return "leads"
}

// Lead lifecycle statuses stored in Status.
const (
	LeadStatusNovo        = "novo"
	LeadStatusContatado   = "contatado"
	LeadStatusQualificado = "qualificado"
	LeadStatusConvertido  = "convertido"
	LeadStatusPerdido     = "perdido"
)

func ValidLeadStatus(status string) bool {
	switch status {
	case LeadStatusNovo, LeadStatusContatado, LeadStatusQualificado,
		LeadStatusConvertido, LeadStatusPerdido:
		return true
	}
	return false
}

// LeadOrigins lists the accepted values for Origem.
var LeadOrigins = []string{"site", "indicacao", "evento", "anuncio", "telefone", "outro"}

func ValidLeadOrigin(origem string) bool {
	if origem == "" {
		return true
	}
	for _, o := range LeadOrigins {
		if o == origem {
			return true
		}
	}
	return false
}
