package services

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Upload flow step names as persisted inside the conversation context.
const (
	StepInit                 = "init"
	StepAwaitingPhoto        = "awaiting_photo"
	StepHasPhotoAwaitingData = "has_photo_awaiting_data"
	StepAwaitingCompletion   = "awaiting_completion"
	StepHasDataAwaitingPhoto = "has_data_awaiting_photo"
)

// UploadState is the tagged union of upload flow states. Each variant
// carries exactly the fields valid at that step, so a context holding
// photos before any photo arrived cannot even be represented.
type UploadState interface {
	Step() string
}

// StateInit is the instant after /upload, before instructions are sent.
// It always advances to a waiting state within the same turn.
type StateInit struct{}

// StateAwaitingPhoto waits for the first photo. Data supplied with the
// /upload command itself is kept here.
type StateAwaitingPhoto struct {
	Vehicle PartialVehicle `json:"vehicle"`
}

// StateHasPhotoAwaitingData holds photos while required fields are missing.
type StateHasPhotoAwaitingData struct {
	Photos  []string       `json:"photos"`
	Vehicle PartialVehicle `json:"vehicle"`
}

// StateAwaitingCompletion is the mixed accumulation state: some data, maybe
// some photos, not yet enough of both.
type StateAwaitingCompletion struct {
	Photos  []string       `json:"photos"`
	Vehicle PartialVehicle `json:"vehicle"`
}

// StateHasDataAwaitingPhoto has every required field and waits for a photo.
type StateHasDataAwaitingPhoto struct {
	Vehicle PartialVehicle `json:"vehicle"`
}

func (StateInit) Step() string                 { return StepInit }
func (StateAwaitingPhoto) Step() string        { return StepAwaitingPhoto }
func (StateHasPhotoAwaitingData) Step() string { return StepHasPhotoAwaitingData }
func (StateAwaitingCompletion) Step() string   { return StepAwaitingCompletion }
func (StateHasDataAwaitingPhoto) Step() string { return StepHasDataAwaitingPhoto }

// uploadEnvelope is the persisted JSON form of an UploadState.
type uploadEnvelope struct {
	Step    string          `json:"step"`
	Photos  []string        `json:"photos,omitempty"`
	Vehicle *PartialVehicle `json:"vehicle,omitempty"`
}

// EncodeUploadState serializes a state for the conversation contextData
// column.
func EncodeUploadState(state UploadState) (string, error) {
	env := uploadEnvelope{Step: state.Step()}
	switch s := state.(type) {
	case StateInit:
	case StateAwaitingPhoto:
		env.Vehicle = &s.Vehicle
	case StateHasPhotoAwaitingData:
		env.Photos = s.Photos
		env.Vehicle = &s.Vehicle
	case StateAwaitingCompletion:
		env.Photos = s.Photos
		env.Vehicle = &s.Vehicle
	case StateHasDataAwaitingPhoto:
		env.Vehicle = &s.Vehicle
	default:
		return "", fmt.Errorf("unknown upload state %q", state.Step())
	}
	raw, err := json.Marshal(env)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeUploadState restores a state from persisted contextData.
func DecodeUploadState(raw string) (UploadState, error) {
	if raw == "" {
		return nil, fmt.Errorf("empty upload context")
	}
	var env uploadEnvelope
	if err := json.UnmarshalFromString(raw, &env); err != nil {
		return nil, fmt.Errorf("decode upload context: %w", err)
	}
	vehicle := PartialVehicle{}
	if env.Vehicle != nil {
		vehicle = *env.Vehicle
	}
	switch env.Step {
	case StepInit:
		return StateInit{}, nil
	case StepAwaitingPhoto:
		return StateAwaitingPhoto{Vehicle: vehicle}, nil
	case StepHasPhotoAwaitingData:
		return StateHasPhotoAwaitingData{Photos: env.Photos, Vehicle: vehicle}, nil
	case StepAwaitingCompletion:
		return StateAwaitingCompletion{Photos: env.Photos, Vehicle: vehicle}, nil
	case StepHasDataAwaitingPhoto:
		return StateHasDataAwaitingPhoto{Vehicle: vehicle}, nil
	default:
		return nil, fmt.Errorf("unknown upload step %q", env.Step)
	}
}

// UploadTurn is one inbound message routed into the upload flow.
type UploadTurn struct {
	Text      string
	PhotoURL  string
	Extracted PartialVehicle
}

// VehicleDraft is the complete field set handed to the executor at commit.
type VehicleDraft struct {
	Vehicle PartialVehicle
	Photos  []string
}

// UploadResult describes the outcome of advancing the flow one turn.
// Draft set means the flow reached commit; otherwise Next is the state to
// persist and the remaining fields drive the reply.
type UploadResult struct {
	Next       UploadState
	Draft      *VehicleDraft
	Missing    []string
	NeedsPhoto bool
	PhotoCount int
	PhotoAdded bool
	OverCap    bool
}

// StartUpload opens the flow for a /upload command. Init advances to the
// first waiting state within the same turn, keeping any data already
// present in the command text.
func StartUpload(extracted PartialVehicle) UploadState {
	if extracted.MandatoryComplete() {
		return StateHasDataAwaitingPhoto{Vehicle: extracted}
	}
	return StateAwaitingPhoto{Vehicle: extracted}
}

// AdvanceUpload applies one turn to the flow. Partial fields from earlier
// turns always survive: new values are merged right-biased, absent values
// keep the prior ones.
func AdvanceUpload(state UploadState, turn UploadTurn, maxPhotos int) UploadResult {
	hasPhoto := turn.PhotoURL != ""
	hasText := turn.Text != "" || !turn.Extracted.IsEmpty()

	switch s := state.(type) {
	case StateInit:
		// A context persisted mid-init behaves like an empty waiting state.
		return AdvanceUpload(StateAwaitingPhoto{}, turn, maxPhotos)

	case StateAwaitingPhoto:
		merged := s.Vehicle.Merge(turn.Extracted)
		if hasPhoto {
			if merged.MandatoryComplete() {
				return commitResult(merged, []string{turn.PhotoURL})
			}
			return UploadResult{
				Next:       StateHasPhotoAwaitingData{Photos: []string{turn.PhotoURL}, Vehicle: merged},
				Missing:    merged.MissingMandatory(),
				PhotoCount: 1,
				PhotoAdded: true,
			}
		}
		if merged.MandatoryComplete() {
			return UploadResult{Next: StateHasDataAwaitingPhoto{Vehicle: merged}, NeedsPhoto: true}
		}
		return UploadResult{
			Next:    StateAwaitingCompletion{Vehicle: merged},
			Missing: missingWithPhoto(merged, nil),
		}

	case StateHasPhotoAwaitingData:
		photos := s.Photos
		added := false
		if hasPhoto {
			if len(photos) >= maxPhotos {
				return UploadResult{
					Next:       s,
					Missing:    s.Vehicle.MissingMandatory(),
					PhotoCount: len(photos),
					OverCap:    true,
				}
			}
			photos = append(photos[:len(photos):len(photos)], turn.PhotoURL)
			added = true
		}
		merged := s.Vehicle.Merge(turn.Extracted)
		if merged.MandatoryComplete() {
			return commitResult(merged, photos)
		}
		if hasText {
			return UploadResult{
				Next:       StateAwaitingCompletion{Photos: photos, Vehicle: merged},
				Missing:    merged.MissingMandatory(),
				PhotoCount: len(photos),
				PhotoAdded: added,
			}
		}
		return UploadResult{
			Next:       StateHasPhotoAwaitingData{Photos: photos, Vehicle: merged},
			Missing:    merged.MissingMandatory(),
			PhotoCount: len(photos),
			PhotoAdded: added,
		}

	case StateAwaitingCompletion:
		photos := s.Photos
		added := false
		if hasPhoto {
			if len(photos) >= maxPhotos {
				return UploadResult{
					Next:       s,
					Missing:    missingWithPhoto(s.Vehicle, photos),
					PhotoCount: len(photos),
					OverCap:    true,
				}
			}
			photos = append(photos[:len(photos):len(photos)], turn.PhotoURL)
			added = true
		}
		merged := s.Vehicle.Merge(turn.Extracted)
		if merged.MandatoryComplete() {
			if len(photos) > 0 {
				return commitResult(merged, photos)
			}
			return UploadResult{Next: StateHasDataAwaitingPhoto{Vehicle: merged}, NeedsPhoto: true}
		}
		return UploadResult{
			Next:       StateAwaitingCompletion{Photos: photos, Vehicle: merged},
			Missing:    missingWithPhoto(merged, photos),
			PhotoCount: len(photos),
			PhotoAdded: added,
		}

	case StateHasDataAwaitingPhoto:
		merged := s.Vehicle.Merge(turn.Extracted)
		if hasPhoto {
			return commitResult(merged, []string{turn.PhotoURL})
		}
		return UploadResult{Next: StateHasDataAwaitingPhoto{Vehicle: merged}, NeedsPhoto: true}

	default:
		return UploadResult{Next: state}
	}
}

func commitResult(vehicle PartialVehicle, photos []string) UploadResult {
	return UploadResult{
		Draft:      &VehicleDraft{Vehicle: vehicle, Photos: photos},
		PhotoCount: len(photos),
	}
}

func missingWithPhoto(vehicle PartialVehicle, photos []string) []string {
	missing := vehicle.MissingMandatory()
	if len(photos) == 0 {
		missing = append(missing, "photo")
	}
	return missing
}
