package projects

import (
	"time"

	"github.com/aldoetobex/interior-mp-backend/pkg/models"
)

// ProjectView is the read-only aggregate returned by GetProject and ListProjects.
type ProjectView struct {
	ID             uint                 `json:"id"`
	Name           string               `json:"name"`
	Status         models.ProjectStatus `json:"status"`
	DesignType     string               `json:"design_type"`
	HasFloorPlan   bool                 `json:"has_floor_plan"`
	CurrentStep    int                  `json:"current_step"`
	Completed      bool                 `json:"completed"`
	StoragePrefix  string               `json:"storage_prefix"`
	CreatedAt      time.Time            `json:"created_at"`
	LastModifiedAt time.Time            `json:"last_modified_at"`
	Owner          PersonView           `json:"owner"`
	Designer       *PersonView          `json:"designer"`
	FloorPlan      *FloorPlanView       `json:"floor_plan"`
	Rooms          []RoomView           `json:"rooms"`
	FinalDesigns   []FinalDesignView    `json:"final_designs"`
}

type PersonView struct {
	ID        uint   `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type FloorPlanView struct {
	OriginalURL string `json:"original_url"`
	TaggedURL   string `json:"tagged_url"`
	DesignerURL string `json:"designer_url"`
}

type RoomView struct {
	ID                uint     `json:"id"`
	Type              string   `json:"type"`
	SquareFootage     *float64 `json:"square_footage"`
	Length            *float64 `json:"length"`
	Width             *float64 `json:"width"`
	Height            *float64 `json:"height"`
	Style             string   `json:"style"`
	Description       string   `json:"description"`
	ExistingPhotos    []string `json:"existing_photos"`
	InspirationPhotos []string `json:"inspiration_photos"`
}

type FinalDesignView struct {
	ID        uint      `json:"id"`
	DesignURL string    `json:"design_url"`
	CreatedAt time.Time `json:"created_at"`
}

// FileView is one object of the project gallery.
type FileView struct {
	Key string `json:"key"`
	URL string `json:"url"`
}

func personOf(u models.User) PersonView {
	return PersonView{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}

// toView expects Owner, Designer, FloorPlan, Rooms (with Preference and Photos)
// and FinalDesigns to be preloaded. Collections are never nil.
func toView(p models.Project, prefix string) ProjectView {
	v := ProjectView{
		ID:             p.ID,
		Name:           p.Name,
		Status:         p.Status,
		DesignType:     p.DesignType,
		HasFloorPlan:   p.HasFloorPlan,
		CurrentStep:    p.CurrentStep,
		Completed:      p.Completed,
		StoragePrefix:  prefix,
		CreatedAt:      p.CreatedAt,
		LastModifiedAt: p.LastModifiedAt,
		Owner:          personOf(p.Owner),
		Rooms:          make([]RoomView, 0, len(p.Rooms)),
		FinalDesigns:   make([]FinalDesignView, 0, len(p.FinalDesigns)),
	}
	if p.Designer != nil {
		d := personOf(*p.Designer)
		v.Designer = &d
	}
	if p.FloorPlan != nil {
		v.FloorPlan = &FloorPlanView{
			OriginalURL: p.FloorPlan.OriginalURL,
			TaggedURL:   p.FloorPlan.TaggedURL,
			DesignerURL: p.FloorPlan.DesignerURL,
		}
	}
	for _, r := range p.Rooms {
		rv := RoomView{
			ID:                r.ID,
			Type:              r.RoomType,
			SquareFootage:     r.SquareFootage,
			Length:            r.Length,
			Width:             r.Width,
			Height:            r.Height,
			ExistingPhotos:    []string{},
			InspirationPhotos: []string{},
		}
		if r.Preference != nil {
			rv.Style = r.Preference.Style
			rv.Description = r.Preference.Description
		}
		for _, ph := range r.Photos {
			switch ph.PhotoType {
			case models.PhotoInspiration:
				rv.InspirationPhotos = append(rv.InspirationPhotos, ph.PhotoURL)
			default:
				rv.ExistingPhotos = append(rv.ExistingPhotos, ph.PhotoURL)
			}
		}
		v.Rooms = append(v.Rooms, rv)
	}
	for _, d := range p.FinalDesigns {
		v.FinalDesigns = append(v.FinalDesigns, FinalDesignView{ID: d.ID, DesignURL: d.DesignURL, CreatedAt: d.CreatedAt})
	}
	return v
}
