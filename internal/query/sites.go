package query

import (
	"fmt"

	"github.com/samijaber1/sitepulse/internal/progress"
)

// IPCMilestone is the state of one IPC milestone of a site
type IPCMilestone struct {
	Milestone string            `json:"milestone"`
	Stage     progress.IPCStage `json:"stage"`
	Color     string            `json:"color"`
}

// SiteIPC is the IPC milestone status of a site
type SiteIPC struct {
	Milestones []IPCMilestone    `json:"milestones"`
	BestStage  progress.IPCStage `json:"ipc_best_stage"`
	BestColor  string            `json:"ipc_best_color"`
	Released   bool              `json:"any_released"`
}

func newSiteIPC(status progress.IPCStatus) SiteIPC {
	ipc := SiteIPC{
		Milestones: make([]IPCMilestone, 0, progress.IPCCount),
		BestStage:  status.Best(),
		BestColor:  status.Best().Color(),
		Released:   status.AnyReleased(),
	}
	for i, stage := range status.Stages {
		ipc.Milestones = append(ipc.Milestones, IPCMilestone{
			Milestone: fmt.Sprintf("ipc_%d", i+1),
			Stage:     stage,
			Color:     stage.Color(),
		})
	}
	return ipc
}

// PhotoEntry holds the photo links of one task
type PhotoEntry struct {
	TaskName   string `json:"task_name"`
	Discipline string `json:"discipline"`
	progress.PhotoLinks
}

func photoEntries(tasks []progress.TaskRecord) []PhotoEntry {
	entries := []PhotoEntry{}
	for _, task := range tasks {
		if !task.Photos.HasAny() {
			continue
		}
		entries = append(entries, PhotoEntry{
			TaskName:   task.TaskName,
			Discipline: task.Discipline,
			PhotoLinks: task.Photos,
		})
	}
	return entries
}

// SiteDetail is a site together with everything it owns
type SiteDetail struct {
	Site   progress.SiteRecord   `json:"site"`
	Tasks  []progress.TaskRecord `json:"tasks"`
	IPC    SiteIPC               `json:"ipc"`
	Photos []PhotoEntry          `json:"photos"`
}

// SiteDetail looks a site up by its exact key. The bool is false when
// no site matches.
func (v *View) SiteDetail(key progress.SiteKey) (SiteDetail, bool) {
	site, err := v.find(key)
	if err != nil {
		return SiteDetail{}, false
	}
	tasks := site.Tasks
	if tasks == nil {
		tasks = []progress.TaskRecord{}
	}
	return SiteDetail{
		Site:   site,
		Tasks:  tasks,
		IPC:    newSiteIPC(site.IPC),
		Photos: photoEntries(site.Tasks),
	}, true
}

// SiteTasks returns the tasks of a site; empty when the site is unknown
func (v *View) SiteTasks(key progress.SiteKey) []progress.TaskRecord {
	site, err := v.find(key)
	if err != nil || site.Tasks == nil {
		return []progress.TaskRecord{}
	}
	return site.Tasks
}

// SiteIPC returns the IPC milestones of a site
func (v *View) SiteIPC(key progress.SiteKey) (SiteIPC, bool) {
	site, err := v.find(key)
	if err != nil {
		return SiteIPC{}, false
	}
	return newSiteIPC(site.IPC), true
}

// SitePhotos returns photo entries for the tasks of a site that have at
// least one photo link
func (v *View) SitePhotos(key progress.SiteKey) []PhotoEntry {
	site, err := v.find(key)
	if err != nil {
		return []PhotoEntry{}
	}
	return photoEntries(site.Tasks)
}
